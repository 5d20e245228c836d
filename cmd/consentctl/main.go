// Command consentctl runs the consent engine against a local LevelDB ledger
// and Badger blob store. Each principal acts through a key file holding its
// encryption key pair.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/haven-health-passport/chaincode/consent/config"
	"github.com/haven-health-passport/chaincode/consent/logging"
	"github.com/haven-health-passport/chaincode/consent/models"
)

const usage = `Usage: consentctl <command> [arguments]
Commands:
  keygen   -key <file>
  whoami   -key <file>
  register -key <file>
  upload   -key <file> -id <record-id> <file>
  grant    -key <file> -record <record-id> -doctor <address> [-duration 168h]
  revoke   -key <file> <grant-id>
  access   -key <file> <grant-id> <output-file>
  status   <grant-id>
  record   <record-id>
  grants   -key <file>
  audit    [-principal <address>] [-role patient|doctor] [-record <id>]
Every command accepts -config <file> (default consent.yaml).`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cmd := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := cmd.String("config", "consent.yaml", "config file")
	keyPath := cmd.String("key", "", "key file")

	var err error
	switch os.Args[1] {
	case "keygen":
		cmd.Parse(os.Args[2:])
		err = keygen(*keyPath)
	case "whoami":
		cmd.Parse(os.Args[2:])
		err = whoami(*keyPath)
	case "register":
		cmd.Parse(os.Args[2:])
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			p, err := a.registerKey(ctx, kf)
			if err != nil {
				return err
			}
			return a.print(p)
		})
	case "upload":
		id := cmd.String("id", "", "record ID")
		cmd.Parse(os.Args[2:])
		if cmd.NArg() < 1 || *id == "" {
			fail("%s", "Usage: consentctl upload -key <file> -id <record-id> <file>")
		}
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			data, err := os.ReadFile(cmd.Arg(0))
			if err != nil {
				return err
			}
			record, err := a.upload(ctx, kf, *id, data)
			if err != nil {
				return err
			}
			return a.print(record)
		})
	case "grant":
		record := cmd.String("record", "", "record ID")
		doctor := cmd.String("doctor", "", "doctor address")
		duration := cmd.Duration("duration", 0, "grant duration (default from config)")
		cmd.Parse(os.Args[2:])
		if *record == "" || *doctor == "" {
			fail("%s", "Usage: consentctl grant -key <file> -record <record-id> -doctor <address> [-duration 168h]")
		}
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			d := *duration
			if d == 0 {
				d = a.cfg.Engine.DefaultGrantDuration
			}
			g, err := a.grant(ctx, kf, *record, *doctor, d)
			if err != nil {
				return err
			}
			return a.print(g)
		})
	case "revoke":
		cmd.Parse(os.Args[2:])
		grantID := grantArg(cmd, "Usage: consentctl revoke -key <file> <grant-id>")
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			g, err := a.revoke(ctx, kf, grantID)
			if err != nil {
				return err
			}
			return a.print(g)
		})
	case "access":
		cmd.Parse(os.Args[2:])
		grantID := grantArg(cmd, "Usage: consentctl access -key <file> <grant-id> <output-file>")
		if cmd.NArg() < 2 {
			fail("%s", "Usage: consentctl access -key <file> <grant-id> <output-file>")
		}
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			data, decision, err := a.access(ctx, kf, grantID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cmd.Arg(1), data, 0600); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Grant %d: record written to %s (expires %s)\n",
				decision.GrantID, cmd.Arg(1), decision.ExpiresAt.Format(time.RFC3339))
			return nil
		})
	case "status":
		cmd.Parse(os.Args[2:])
		grantID := grantArg(cmd, "Usage: consentctl status <grant-id>")
		err = withApp(*configPath, "", func(ctx context.Context, a *app, _ *keyFile) error {
			g, err := a.svc.GetGrant(ctx, grantID)
			if err != nil {
				return err
			}
			return a.print(g)
		})
	case "record":
		cmd.Parse(os.Args[2:])
		if cmd.NArg() < 1 {
			fail("%s", "Usage: consentctl record <record-id>")
		}
		err = withApp(*configPath, "", func(ctx context.Context, a *app, _ *keyFile) error {
			record, err := a.svc.GetRecord(ctx, cmd.Arg(0))
			if err != nil {
				return err
			}
			grants, err := a.svc.ListGrantsByRecord(ctx, record.RecordID)
			if err != nil {
				return err
			}
			return a.print(struct {
				Record *models.Record      `json:"record"`
				Grants []*models.GrantView `json:"grants"`
			}{record, grants})
		})
	case "grants":
		cmd.Parse(os.Args[2:])
		err = withApp(*configPath, *keyPath, func(ctx context.Context, a *app, kf *keyFile) error {
			given, err := a.svc.ListGrantsByPatient(ctx, kf.Address)
			if err != nil {
				return err
			}
			received, err := a.svc.ListGrantsByDoctor(ctx, kf.Address)
			if err != nil {
				return err
			}
			return a.print(map[string][]*models.GrantView{"given": given, "received": received})
		})
	case "audit":
		principal := cmd.String("principal", "", "principal address")
		role := cmd.String("role", "", "patient or doctor")
		record := cmd.String("record", "", "record ID")
		cmd.Parse(os.Args[2:])
		auditRole, perr := models.ParseAuditRole(*role)
		if perr != nil {
			fail("%v (want patient, doctor or empty)", perr)
		}
		err = withApp(*configPath, "", func(ctx context.Context, a *app, _ *keyFile) error {
			entries, err := a.svc.Audit(ctx, models.AuditFilter{
				Principal: *principal,
				Role:      auditRole,
				RecordID:  *record,
			})
			if err != nil {
				return err
			}
			return a.print(entries)
		})
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fail("Error: %v", err)
	}
}

func keygen(path string) error {
	if path == "" {
		return fmt.Errorf("-key is required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}
	kf, err := newKeyFile(path)
	if err != nil {
		return err
	}
	if err := kf.save(); err != nil {
		return err
	}
	fmt.Println(kf.Address)
	return nil
}

func whoami(path string) error {
	kf, err := loadKeyFile(path)
	if err != nil {
		return err
	}
	fmt.Println(kf.Address)
	return nil
}

// withApp loads config and the key file, opens the local stores and runs fn.
// An empty keyPath skips the key file.
func withApp(configPath, keyPath string, fn func(context.Context, *app, *keyFile) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	var kf *keyFile
	if keyPath != "" {
		if kf, err = loadKeyFile(keyPath); err != nil {
			return err
		}
	}

	if kf == nil && needsKey(os.Args[1]) {
		return fmt.Errorf("-key is required")
	}

	a, err := openApp(cfg, log, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(context.Background(), a, kf)
}

func needsKey(cmd string) bool {
	switch cmd {
	case "status", "record", "audit":
		return false
	}
	return true
}

func grantArg(cmd *flag.FlagSet, msg string) uint64 {
	if cmd.NArg() < 1 {
		fail("%s", msg)
	}
	id, err := strconv.ParseUint(cmd.Arg(0), 10, 64)
	if err != nil {
		fail("invalid grant ID %q", cmd.Arg(0))
	}
	return id
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
