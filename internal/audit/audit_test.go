package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordAppendsOneLinePerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	logger, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	logger.Record(Record{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		From:      "referee:ref-1",
		To:        "league_manager",
		Outcome:   OutcomeAccepted,
	})
	logger.Record(Record{
		Timestamp: time.Now(),
		Direction: DirectionOut,
		From:      "league_manager",
		To:        "referee:ref-1",
		Outcome:   Rejected("AUTH_REQUIRED"),
	})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, DirectionIn, first.Direction)
	require.Equal(t, OutcomeAccepted, first.Outcome)

	var second Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, Outcome("rejected:AUTH_REQUIRED"), second.Outcome)
}

func TestRecordSurvivesReopenAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")

	first, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	first.Record(Record{Outcome: OutcomeAccepted})
	require.NoError(t, first.Close())

	second, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	second.Record(Record{Outcome: OutcomeAccepted})
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, splitLines(string(data)), 2)
}

func splitLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}
