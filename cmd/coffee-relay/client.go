package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/gpio"
	"github.com/sweeney/coffee-relay/internal/status"
)

var flagDirect bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the relay state and exit",
	Long: `Print the relay state and the current schedule.

By default the running daemon is queried over HTTP. With --direct the GPIO
line is read instead, which only works while no daemon holds the line.`,
	RunE: runStatus,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Force the relay off and exit",
	Long: `Cancel any scheduled start and switch the relay off.

By default the request goes to the running daemon. With --direct the GPIO
line is driven off and released.`,
	RunE: runStop,
}

func init() {
	statusCmd.Flags().BoolVar(&flagDirect, "direct", false, "Read the GPIO line instead of asking the daemon")
	stopCmd.Flags().BoolVar(&flagDirect, "direct", false, "Drive the GPIO line instead of asking the daemon")
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if flagDirect {
		relay := actuator.New(gpio.NewRealPin(cfg.Chip, cfg.Pin), logger)
		fmt.Fprintf(out, "Relay: %s (%s line %d)\n", relay.Status(), cfg.Chip, cfg.Pin)
		return nil
	}

	sj, err := fetchStatus(daemonURL(cfg.HTTPAddr))
	if err != nil {
		return err
	}
	printStatus(out, sj, time.Now())
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if flagDirect {
		relay := actuator.New(gpio.NewRealPin(cfg.Chip, cfg.Pin), logger)
		if err := relay.DeEnergize(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Coffee machine stopped")
		return nil
	}

	msg, err := requestStop(daemonURL(cfg.HTTPAddr))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, msg)
	return nil
}

// daemonURL turns a listen address into a base URL on the local host.
func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchStatus(base string) (status.StatusJSON, error) {
	var sj status.StatusJSON
	resp, err := httpClient.Get(base + "/index.json")
	if err != nil {
		return sj, fmt.Errorf("query daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sj, fmt.Errorf("query daemon: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		return sj, fmt.Errorf("decode status: %w", err)
	}
	return sj, nil
}

func requestStop(base string) (string, error) {
	resp, err := httpClient.Post(base+"/api/raspberrypi/stopcoffee", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("stop: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stop: read response (%s): %w", resp.Status, err)
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("stop: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stop: %s", body.Error)
	}
	return body.Message, nil
}

func printStatus(w io.Writer, sj status.StatusJSON, now time.Time) {
	s := sj.Status
	fmt.Fprintf(w, "Relay:     %s\n", s.Relay)
	fmt.Fprintf(w, "Phase:     %s (generation %d)\n", s.Schedule.Phase, s.Schedule.Generation)
	if at := parseTime(s.Schedule.ScheduledFor); !at.IsZero() {
		fmt.Fprintf(w, "Starts:    %s (%s)\n", at.Local().Format("Mon 15:04:05"), humanize.RelTime(at, now, "ago", "from now"))
	}
	if off := parseTime(s.Schedule.OffAt); !off.IsZero() {
		fmt.Fprintf(w, "Auto-off:  %s (%s)\n", off.Local().Format("Mon 15:04:05"), humanize.RelTime(off, now, "ago", "from now"))
	}
	if next := parseTime(s.NextAutostart); !next.IsZero() {
		fmt.Fprintf(w, "Autostart: %s (%s)\n", s.Config.Autostart, humanize.RelTime(next, now, "ago", "from now"))
	}
	if s.LastEvent != nil {
		line := s.LastEvent.Type
		if at := parseTime(s.LastEvent.Timestamp); !at.IsZero() {
			line += " " + humanize.RelTime(at, now, "ago", "from now")
		}
		if s.LastEvent.Error != "" {
			line += " (" + s.LastEvent.Error + ")"
		}
		fmt.Fprintf(w, "Last:      %s\n", line)
	}
	uptime := humanize.RelTime(now.Add(-time.Duration(s.UptimeSeconds)*time.Second), now, "", "")
	fmt.Fprintf(w, "Uptime:    %s\n", strings.TrimSpace(uptime))
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
