package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/docsigner/docsigner-go/pkg/registry"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/urfave/cli/v2"
)

const dateLayout = "2006-01-02"

func registryCommand() *cli.Command {
	labFlag := &cli.StringFlag{Name: "lab", Usage: "Laboratory address", Required: true}
	nameFlag := &cli.StringFlag{Name: "name", Usage: "Name", Required: true}
	verifiedFlag := &cli.BoolFlag{Name: "verified", Usage: "Verification status to set", Value: true}

	return &cli.Command{
		Name:  "registry",
		Usage: "Read and administer the accreditation registry",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether the connected account is the owner or an auditor",
				Action: registryStatusCommand,
			},
			{
				Name:   "add-auditor",
				Usage:  "Add an auditor (owner only)",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "auditor", Required: true}},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					auditor, err := registry.ParseAddress(c.String("auditor"))
					if err != nil {
						return nil, err
					}
					return svc.AddAuditor(c.Context, s, auditor)
				}),
			},
			{
				Name:   "remove-auditor",
				Usage:  "Remove an auditor (owner only)",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "auditor", Required: true}},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					auditor, err := registry.ParseAddress(c.String("auditor"))
					if err != nil {
						return nil, err
					}
					return svc.RemoveAuditor(c.Context, s, auditor)
				}),
			},
			{
				Name:   "add-lab",
				Usage:  "Register a laboratory",
				Flags:  []cli.Flag{labFlag, nameFlag},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					lab, err := registry.ParseAddress(c.String("lab"))
					if err != nil {
						return nil, err
					}
					return svc.AddLaboratory(c.Context, s, lab, c.String("name"))
				}),
			},
			{
				Name:   "verify-lab",
				Usage:  "Set a laboratory's verification status (auditors only)",
				Flags:  []cli.Flag{labFlag, verifiedFlag},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					lab, err := registry.ParseAddress(c.String("lab"))
					if err != nil {
						return nil, err
					}
					return svc.SetLaboratoryVerificationStatus(c.Context, s, lab, c.Bool("verified"))
				}),
			},
			{
				Name:   "add-signer",
				Usage:  "Register or rename the connected account as a signer",
				Flags:  []cli.Flag{nameFlag},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					return svc.AddModSigner(c.Context, s, c.String("name"))
				}),
			},
			{
				Name:  "verify-signer",
				Usage: "Set a signer's verification status (auditors only)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "signer", Required: true},
					verifiedFlag,
				},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					signer, err := registry.ParseAddress(c.String("signer"))
					if err != nil {
						return nil, err
					}
					return svc.SetSignerVerificationStatus(c.Context, s, signer, c.Bool("verified"))
				}),
			},
			{
				Name:  "add-accreditation",
				Usage: "Add or update a laboratory accreditation (auditors only)",
				Flags: []cli.Flag{
					labFlag,
					nameFlag,
					&cli.StringFlag{Name: "valid-from", Usage: "Start date (YYYY-MM-DD or unix seconds)", Required: true},
					&cli.StringFlag{Name: "valid-until", Usage: "End date (YYYY-MM-DD or unix seconds)", Required: true},
				},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					lab, err := registry.ParseAddress(c.String("lab"))
					if err != nil {
						return nil, err
					}
					from, err := parseDate(c.String("valid-from"))
					if err != nil {
						return nil, err
					}
					until, err := parseDate(c.String("valid-until"))
					if err != nil {
						return nil, err
					}
					return svc.AddModAccreditation(c.Context, s, lab, c.String("name"), from, until)
				}),
			},
			{
				Name:   "revoke-accreditation",
				Usage:  "Revoke a laboratory accreditation (auditors only)",
				Flags:  []cli.Flag{labFlag, nameFlag},
				Action: registryWrite(func(c *cli.Context, svc *registry.Service, s transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error) {
					lab, err := registry.ParseAddress(c.String("lab"))
					if err != nil {
						return nil, err
					}
					return svc.RevokeAccreditation(c.Context, s, lab, c.String("name"))
				}),
			},
			{
				Name:   "check-accreditation",
				Usage:  "Check whether a laboratory holds a currently valid accreditation",
				Flags:  []cli.Flag{labFlag, nameFlag},
				Action: checkAccreditationCommand,
			},
		},
	}
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or unix seconds
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected %s or unix seconds", s, dateLayout)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func registryStatusCommand(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireRegistry(); err != nil {
		return err
	}

	session, err := e.connect(c)
	if err != nil {
		return err
	}
	defer session.Close()

	svc, err := registry.NewService(e.caller, e.caller, e.logger)
	if err != nil {
		return err
	}
	account, _ := session.Account()
	status, err := svc.AccountStatus(c.Context, account)
	if err != nil {
		return err
	}
	return printJSON(c, status)
}

type registryWriteFunc func(c *cli.Context, svc *registry.Service, txSigner transactionSigner.ITransactionSigner) (*ethereumTypes.Receipt, error)

// registryWrite connects the wallet and runs fn with the account's transaction signer
func registryWrite(fn registryWriteFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireRegistry(); err != nil {
			return err
		}

		session, err := e.connect(c)
		if err != nil {
			return err
		}
		defer session.Close()

		account, _ := session.Account()
		txSigner, err := session.Wallet().TransactionSigner(c.Context, account)
		if err != nil {
			return err
		}
		svc, err := registry.NewService(e.caller, e.caller, e.logger)
		if err != nil {
			return err
		}

		ctx, cancel := e.submitContext(c.Context)
		defer cancel()
		c.Context = ctx
		receipt, err := fn(c, svc, txSigner)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]interface{}{
			"transactionHash": receipt.TxHash.Hex(),
			"blockNumber":     receipt.BlockNumber,
			"gasUsed":         receipt.GasUsed,
			"status":          receipt.Status,
		})
	}
}

func checkAccreditationCommand(c *cli.Context) error {
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
	valid, err := svc.HasValidAccreditation(c.Context, lab, c.String("name"))
	if err != nil {
		return err
	}
	details, err := svc.AccreditationDetails(c.Context, lab, c.String("name"))
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{
		"laboratory":    lab.Hex(),
		"valid":         valid,
		"accreditation": details,
	})
}
