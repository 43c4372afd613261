// Command geonetgo adjusts a geodetic network described in a plain-text
// observation file and reports the solved statistics.
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"geonet/pkg/network"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Version:   "v0.1.0",
		Compiled:  time.Now(),
		HelpName:  "geonetgo",
		Usage:     "least-squares geodetic network adjustment",
		ArgsUsage: "<file.dat>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "units",
				Usage: "override the input unit system: m|ft|us",
			},
			&cli.IntFlag{
				Name:  "max-iter",
				Usage: "override the solver's maximum Gauss-Newton iteration count",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "override the solver's convergence threshold (max parameter correction, m/rad)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "adjust",
				Usage:     "load, adjust and report a network",
				UsageText: "geonetgo adjust <file.dat>",
				Action:    runAdjust,
			},
			{
				Name:      "validate",
				Usage:     "parse a network and print accumulated log lines",
				UsageText: "geonetgo validate <file.dat>",
				Action:    runValidate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadNetwork(c *cli.Context) (*network.ParsedNetwork, error) {
	if c.NArg() != 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}
	path := c.Args().Get(0)

	pn, err := network.LoadNetworkFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if units := c.String("units"); units != "" {
		pn.State.UnitsFeet = units == "ft" || units == "us"
	}

	return pn, nil
}

func runValidate(c *cli.Context) error {
	pn, err := loadNetwork(c)
	if err != nil {
		return err
	}

	network.ValidateNetwork(pn)

	for _, l := range pn.Logs {
		fmt.Fprintln(c.App.Writer, l)
	}

	if hasErrorOfRecord(pn.Logs) {
		return cli.Exit("", 1)
	}

	fmt.Fprintf(c.App.Writer, "%d stations, %d observations, no errors\n",
		pn.Stations.Len(), len(pn.Observations))
	return nil
}

// hasErrorOfRecord reports whether any parser log line records a malformed
// or rejected input record rather than an informational note.
func hasErrorOfRecord(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "unknown record") || strings.Contains(l, "missing") ||
			strings.Contains(l, "invalid") || strings.Contains(l, "without an open") ||
			strings.Contains(l, "validate:") {
			return true
		}
	}
	return false
}

func runAdjust(c *cli.Context) error {
	pn, err := loadNetwork(c)
	if err != nil {
		return err
	}

	network.ValidateNetwork(pn)
	for _, l := range pn.Logs {
		fmt.Fprintln(c.App.Writer, l)
	}

	opts := network.DefaultAdjustOptions()
	if c.IsSet("max-iter") {
		opts.MaxIterations = c.Int("max-iter")
	}
	if c.IsSet("threshold") {
		opts.Threshold = c.Float64("threshold")
	}

	result := network.Adjust(pn, opts)

	for _, l := range result.Logs {
		fmt.Fprintln(c.App.Writer, l)
	}

	fmt.Fprintf(c.App.Writer, "iterations: %d converged=%v\n", result.Iterations, result.Converged)
	if !result.Success {
		return cli.Exit("adjustment failed", 1)
	}

	stats := network.RunStatistics(result)
	fmt.Fprintf(c.App.Writer, "SEUW: %.4f\n", stats.SEUW)
	if stats.ChiSquare != nil {
		fmt.Fprintf(c.App.Writer, "chi-square: T=%.3f dof=%d pass95=%v\n",
			stats.ChiSquare.T, stats.ChiSquare.Dof, stats.ChiSquare.Pass95)
	}

	printWorstOffenders(c, result.Network.Observations)

	return nil
}

// printWorstOffenders prints the number of failed local tests and the
// single observation with the largest |t| local test statistic, the
// quantities an operator checks first after a run.
func printWorstOffenders(c *cli.Context, observations []*network.Observation) {
	worstT := 0.0
	var worst *network.Observation
	failCount := 0
	for _, obs := range observations {
		if obs.LocalTest == nil {
			continue
		}
		if !obs.LocalTest.Pass {
			failCount++
		}
		if math.Abs(obs.LocalTest.T) > worstT {
			worstT = math.Abs(obs.LocalTest.T)
			worst = obs
		}
	}
	fmt.Fprintf(c.App.Writer, "local test failures: %d\n", failCount)
	if worst != nil {
		fmt.Fprintf(c.App.Writer, "worst offender: obs #%d (%s), t=%.3f\n", worst.ID, worst.Kind, worst.LocalTest.T)
	}
}
