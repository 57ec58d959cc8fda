// Command gatherctl performs admin tasks against the gather database.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"gather/internal/adapters/storage"
	attendanceStore "gather/internal/adapters/storage/attendance"
	scheduleStore "gather/internal/adapters/storage/eventschedule"
	personStore "gather/internal/adapters/storage/person"
	"gather/internal/application/orchestrators"
	"gather/internal/application/projections"
	"gather/internal/config"
	"gather/internal/domain/eventschedule"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errPasswordMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	out     io.Writer
	db      *sql.DB
	now     func() time.Time
	stdinFd int
	cfg     config.Config
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cli := &commandLine{out: os.Stdout, now: time.Now, stdinFd: int(os.Stdin.Fd()), cfg: cfg}
	defer func() {
		if cli.db != nil {
			cli.db.Close()
		}
	}()
	if err := cli.run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  hash-password                                   - prompt for a password and print its bcrypt hash")
	fmt.Fprintln(cli.out, "  schedule                                        - print the current schedule, rolling it over if expired")
	fmt.Fprintln(cli.out, "  set-schedule -pre-reg YYYY-MM-DD -event YYYY-MM-DD - replace the current schedule")
	fmt.Fprintln(cli.out, "  promotions [-threshold N] [-eligible]           - list first-timers by unique event days")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setScheduleCmd := flag.NewFlagSet("set-schedule", flag.ContinueOnError)
	setScheduleCmd.SetOutput(cli.out)
	preReg := setScheduleCmd.String("pre-reg", "", "First day of pre-registration (YYYY-MM-DD, UTC)")
	event := setScheduleCmd.String("event", "", "Event day (YYYY-MM-DD, UTC)")

	promotionsCmd := flag.NewFlagSet("promotions", flag.ContinueOnError)
	promotionsCmd.SetOutput(cli.out)
	threshold := promotionsCmd.Int("threshold", cli.cfg.PromotionThreshold, "Unique event days needed for promotion")
	eligibleOnly := promotionsCmd.Bool("eligible", false, "Only list people at or above the threshold")

	switch args[1] {
	case "hash-password":
		return cli.hashPassword()
	case "schedule":
		return cli.showSchedule(ctx)
	case "set-schedule":
		if err := setScheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *preReg == "" || *event == "" {
			setScheduleCmd.Usage()
			return errHelp
		}
		return cli.setSchedule(ctx, *preReg, *event)
	case "promotions":
		if err := promotionsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.promotions(ctx, *threshold, *eligibleOnly)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) hashPassword() error {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(cli.stdinFd)
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		return errHelp
	}
	fmt.Fprint(cli.out, "Confirm password:")
	confirm, err := readPasswordFunc(cli.stdinFd)
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if !bytes.Equal(pwd, confirm) {
		return errPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "GATHER_ADMIN_PASSWORD_HASH=%s\n", hash)
	return nil
}

func (cli *commandLine) openDB() (*sql.DB, error) {
	if cli.db != nil {
		return cli.db, nil
	}
	db, err := storage.Open(cli.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cli.db = db
	return db, nil
}

func (cli *commandLine) openScheduleStore() (*scheduleStore.SQLiteStore, error) {
	db, err := cli.openDB()
	if err != nil {
		return nil, err
	}
	store := scheduleStore.NewSQLiteStore(db)
	if err := store.Init(context.Background(), eventschedule.ForWeekOf(cli.now().UTC())); err != nil {
		return nil, err
	}
	return store, nil
}

func (cli *commandLine) showSchedule(ctx context.Context) error {
	store, err := cli.openScheduleStore()
	if err != nil {
		return err
	}
	res, err := orchestrators.ExecuteLoadSchedule(ctx, orchestrators.LoadScheduleDeps{ScheduleStore: store, Now: cli.now})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "pre-registration opens %s\nevent starts          %s\n",
		res.Schedule.PreRegStart().Format(time.RFC3339), res.Schedule.EventStart().Format(time.RFC3339))
	if res.Rolled {
		fmt.Fprintln(cli.out, "(rolled over from an expired schedule)")
	}
	return nil
}

func (cli *commandLine) setSchedule(ctx context.Context, preReg, event string) error {
	store, err := cli.openScheduleStore()
	if err != nil {
		return err
	}
	s, err := orchestrators.ExecuteSetSchedule(ctx, orchestrators.SetScheduleInput{
		PreRegStartDate: preReg,
		EventDate:       event,
	}, orchestrators.SetScheduleDeps{ScheduleStore: store})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "schedule set to %s\n", s)
	return nil
}

func (cli *commandLine) promotions(ctx context.Context, threshold int, eligibleOnly bool) error {
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	results, err := projections.QueryGetPromotionCandidates(ctx,
		projections.GetPromotionCandidatesQuery{Threshold: threshold, EligibleOnly: eligibleOnly},
		projections.GetPromotionCandidatesDeps{
			AttendanceStore: attendanceStore.NewSQLiteStore(db),
			PersonStore:     personStore.NewSQLiteStore(db),
		})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERSON\tNAME\tDAYS\tELIGIBLE")
	for _, c := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", c.PersonID, c.Name, c.UniqueActualDays, c.Eligible)
	}
	return tw.Flush()
}
