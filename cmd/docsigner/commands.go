package main

import (
	"fmt"
	"time"

	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/registry"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var documentFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Path to the document",
	},
	&cli.StringFlag{
		Name:  "hash",
		Usage: "Document hash (0x-prefixed 32-byte hex) instead of --file",
	},
}

func digestCommand(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	d, err := digest.FromFile(path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, d.Hex())
	return err
}

type signOutput struct {
	Request *signedRequest           `json:"request"`
	Receipt *types.SubmissionReceipt `json:"receipt,omitempty"`
}

type signedRequest struct {
	Digest    string `json:"digest"`
	Signer    string `json:"signer"`
	Nonce     uint32 `json:"nonce"`
	Signature string `json:"signature"`
}

func signCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	path := c.String("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}

	session, err := e.connect(c)
	if err != nil {
		return err
	}
	defer session.Close()

	controller, err := e.newController(session)
	if err != nil {
		return err
	}
	defer controller.Close()

	if _, err := controller.SelectFile(path); err != nil {
		return err
	}
	req, err := controller.RequestSignature(c.Context)
	if err != nil {
		return err
	}
	out := &signOutput{Request: &signedRequest{
		Digest:    req.Digest.Hex(),
		Signer:    req.Signer.Hex(),
		Nonce:     req.Nonce,
		Signature: hexutil.Encode(req.Signature),
	}}

	if c.Bool("no-submit") {
		return printJSON(c, out)
	}

	mode := controller.Snapshot().Mode
	ctx, cancel := e.submitContext(c.Context)
	defer cancel()
	receipt, err := controller.Submit(ctx, mode)
	if err != nil {
		return err
	}
	out.Receipt = receipt
	return printJSON(c, out)
}

func invalidateCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := documentDigest(c)
	if err != nil {
		return err
	}
	session, err := e.connect(c)
	if err != nil {
		return err
	}
	defer session.Close()

	controller, err := e.newController(session)
	if err != nil {
		return err
	}
	defer controller.Close()

	signer, _ := session.Account()
	if c.String("signer") != "" {
		if signer, err = registry.ParseAddress(c.String("signer")); err != nil {
			return err
		}
	}

	ctx, cancel := e.submitContext(c.Context)
	defer cancel()
	receipt, err := controller.Invalidate(ctx, d, signer, controller.Snapshot().Mode)
	if err != nil {
		return err
	}
	return printJSON(c, receipt)
}

func signersCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := documentDigest(c)
	if err != nil {
		return err
	}
	svc, err := registry.NewService(e.caller, e.caller, e.logger)
	if err != nil {
		return err
	}
	reports, err := svc.SignerReports(c.Context, d)
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{
		"digest":  d.Hex(),
		"signers": reports,
	})
}

func verifyCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := documentDigest(c)
	if err != nil {
		return err
	}
	signer, err := registry.ParseAddress(c.String("signer"))
	if err != nil {
		return err
	}
	valid, err := e.caller.VerifyStoredSignature(c.Context, d, signer)
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{
		"digest": d.Hex(),
		"signer": signer.Hex(),
		"valid":  valid,
	})
}

func labInfoCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireRegistry(); err != nil {
		return err
	}

	lab, err := registry.ParseAddress(c.String("lab"))
	if err != nil {
		return err
	}
	svc, err := registry.NewService(e.caller, e.caller, e.logger)
	if err != nil {
		return err
	}
	report, err := svc.LaboratoryReport(c.Context, lab, time.Now())
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

func relayAddressCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.relayClient()
	if err != nil {
		return err
	}
	addr, err := client.GetAddress(c.Context)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, addr.Hex())
	return err
}

func relayReceiptsCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := documentDigest(c)
	if err != nil {
		return err
	}
	client, err := e.relayClient()
	if err != nil {
		return err
	}
	receipts, err := client.ListReceipts(c.Context, d)
	if err != nil {
		return err
	}
	return printJSON(c, receipts)
}
