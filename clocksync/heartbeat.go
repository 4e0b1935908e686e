package clocksync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"
)

const heartbeatAppName = "iclock-sync"

// HeartbeatSender delivers one pass summary line.
type HeartbeatSender interface {
	SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error
}

// SyslogClient writes RFC5424 lines over TCP, one connection per message.
type SyslogClient struct {
	addr string
}

func NewSyslogClient(addr string) *SyslogClient {
	return &SyslogClient{addr: addr}
}

func (c *SyslogClient) SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	conn, err := net.DialTimeout("tcp", c.addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	host, _ := os.Hostname()
	if appName == "" {
		appName = heartbeatAppName
	}
	pri := 134 // local0.info
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf("<%d>1 %s %s %s - - %s %s\n", pri, ts, sanitizeSyslogToken(host), sanitizeSyslogToken(appName), structuredData, strings.TrimSpace(message))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}

func sanitizeSyslogToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, " ", "_")
}

func heartbeatMessage(res PassResult, runErr error) string {
	status := "ok"
	errMsg := ""
	if runErr != nil {
		status = "error"
		errMsg = runErr.Error()
	}
	msg := map[string]any{
		"pass_id":        res.PassID,
		"status":         status,
		"error":          errMsg,
		"started_at":     res.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":    res.Duration.Milliseconds(),
		"dry_run":        res.DryRun,
		"devices_failed": res.DevicesFailed,
		"fetched":        res.Fetched,
		"normalized":     res.Normalized,
		"invalid":        res.Invalid,
		"cached":         res.Cached,
		"candidates":     res.Candidates,
		"uploaded":       res.Uploaded,
		"already_exists": res.AlreadyExists,
		"rejected":       res.Rejected,
		"transient":      res.Transient,
		"activity":       res.Activity,
	}
	b, _ := json.Marshal(msg)
	return string(b)
}

func buildStructuredData(sdID string, kv map[string]string) string {
	if sdID == "" {
		sdID = "iclock"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(sdID)
	preferredOrder := []string{"job", "service", "status", "pass_id"}
	seen := make(map[string]struct{}, len(kv))
	write := func(k, v string) {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=\"")
		b.WriteString(escapeSDParam(v))
		b.WriteString("\"")
	}
	for _, k := range preferredOrder {
		v, ok := kv[k]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		seen[k] = struct{}{}
		write(k, v)
	}
	extra := make([]string, 0, len(kv))
	for k, v := range kv {
		if _, ok := seen[k]; ok || strings.TrimSpace(v) == "" {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		write(k, kv[k])
	}
	b.WriteString("]")
	return b.String()
}

func escapeSDParam(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "]", "\\]")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}
