// Command scan runs one relationship scan from the command line and prints
// the selected set. It talks to the upstream directly and keeps no state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"

	"github.com/follow-scanner/internal/adapter"
	"github.com/follow-scanner/internal/config"
	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/relationship"
	"github.com/follow-scanner/internal/service"
	"github.com/follow-scanner/internal/storage"
	"github.com/follow-scanner/internal/types"
)

func main() {
	accountFlag := flag.String("account", "", "Account id (fid) to scan")
	sortFlag := flag.String("sort", string(relationship.DefaultSortKey), "Sort key: handle, followers, id or score")
	setFlag := flag.String("set", string(types.SetNotFollowingBack), "Set to print: notFollowingBack, mutualFollows or fansOnly")
	jsonFlag := flag.Bool("json", false, "Print the full scan result as JSON")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// progress goes to stderr so stdout stays clean for piping
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
	logging.GetGlobalLogger().SetOutput(os.Stderr)

	accountID, err := service.ValidateAccountID(*accountFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	sortKey, err := relationship.ParseSortKey(*sortFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}
	setName, err := relationship.ParseSetName(*setFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.NewScanService(
		adapter.NewNeynarClient(&cfg.Upstream),
		gating.NewSnapshotCache(storage.NewMemoryStore()),
	)
	outcome, err := svc.Scan(ctx, service.ScanRequest{AccountID: accountID, Tier: types.TierPremium, Refresh: true})
	if err != nil {
		fmt.Printf("Scan failed: %v\n", err)
		os.Exit(1)
	}
	snap := outcome.Snapshot

	if *jsonFlag {
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Printf("Error encoding result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	totals := snap.Result.Totals
	fmt.Printf("Account %d scanned at %s\n", snap.AccountID, snap.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Followers: %d  Following: %d\n", totals.Followers, totals.Following)
	fmt.Printf("Not following back: %d  Mutual: %d  Fans only: %d\n\n",
		totals.NotFollowingBack, totals.MutualFollows, totals.FansOnly)
	for _, w := range snap.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	profiles := relationship.SortProfiles(relationship.SelectSet(snap.Result, setName), sortKey)
	fmt.Printf("%s (%d), sorted by %s\n", setName, len(profiles), sortKey)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FID\tHANDLE\tNAME\tFOLLOWERS\tSCORE")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t@%s\t%s\t%d\t%.2f\n", p.ID, p.Handle, p.DisplayName, p.FollowerCount, p.ReputationScore)
	}
	tw.Flush()
}
