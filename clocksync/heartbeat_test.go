package clocksync

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStructuredData_DefaultSDIDWhenEmpty(t *testing.T) {
	sd := buildStructuredData("", map[string]string{"job": "iclock-sync"})
	assert.Equal(t, `[iclock job="iclock-sync"]`, sd)
}

func TestBuildStructuredData_SkipsEmptyAndSortsExtraKeys(t *testing.T) {
	sd := buildStructuredData("iclock", map[string]string{
		"job":     "hr",
		"service": "attendance",
		"status":  "",
		"zzz":     "3",
		"aaa":     `say "hi"]`,
	})
	assert.NotContains(t, sd, " status=")
	assert.Equal(t, `[iclock job="hr" service="attendance" aaa="say \"hi\"\]" zzz="3"]`, sd)
}

func TestSyslogClient_WritesRFC5424Line(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			got <- ""
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		got <- line
	}()

	c := NewSyslogClient(ln.Addr().String())
	require.NoError(t, c.SendRFC5424Timeout("", `[iclock job="x"]`, ` {"status":"ok"} `, time.Second))

	select {
	case line := <-got:
		assert.True(t, strings.HasPrefix(line, "<134>1 "), line)
		assert.Contains(t, line, ` iclock-sync - - [iclock job="x"] {"status":"ok"}`)
		assert.True(t, strings.HasSuffix(line, "\n"))
	case <-time.After(3 * time.Second):
		t.Fatal("no syslog line received")
	}
}

func TestSyslogClient_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	assert.Error(t, NewSyslogClient(addr).SendRFC5424Timeout("x", "-", "m", 200*time.Millisecond))
}
