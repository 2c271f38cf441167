package main

import (
	"bytes"
	"testing"

	"paddleduel/internal/bot"
	"paddleduel/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSimOptionsFromFlags(t *testing.T) {
	flags := &runFlags{winningScore: 5, tickRate: 30, seed: 9, left: "good", right: "Smart", missChance: 0.3}
	opts, err := simOptionsFrom(config.Default(), flags)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Config.WinningScore)
	assert.Equal(t, 30, opts.Config.TickRate)
	assert.Equal(t, int64(9), opts.Seed)
	assert.Equal(t, bot.BotLevelGood, opts.Left)
	assert.Equal(t, bot.BotLevelSmart, opts.Right)
	assert.Equal(t, 0.3, opts.Tuning.MissChance)

	opts, err = simOptionsFrom(config.Default(), &runFlags{left: "smart", right: "good"})
	require.NoError(t, err)
	assert.Equal(t, config.Default().WinningScore, opts.Config.WinningScore)
	assert.NotZero(t, opts.Seed, "a zero seed is replaced")
}

func TestSimOptionsFromRejectsBadFlags(t *testing.T) {
	cases := map[string]*runFlags{
		"left level":  {left: "god", right: "good"},
		"right level": {left: "good", right: ""},
		"miss chance": {left: "good", right: "good", missChance: 1.5},
	}
	for name, flags := range cases {
		_, err := simOptionsFrom(config.Default(), flags)
		assert.Error(t, err, name)
	}
}

func TestEnvironMap(t *testing.T) {
	got := environMap([]string{"DUEL_WINNING_SCORE=3", "EMPTY=", "BROKEN", "URL=a=b"})
	assert.Equal(t, map[string]string{"DUEL_WINNING_SCORE": "3", "EMPTY": "", "URL": "a=b"}, got)
}

func TestRunCommandAbortsAtTimeLimit(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"run", "--left", "smart", "--right", "smart", "--abort-after", "100ms", "--seed", "4", "--log-level", "warn", "--json-logs"})

	require.NoError(t, cmd.Execute())

	var summary resultSummary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "aborted", summary.Outcome)
	assert.Equal(t, abortTimeLimit, summary.Reason)
	assert.Contains(t, errOut.String(), "time limit")
}

func TestRunCommandRejectsBadLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--log-level", "loud"})
	assert.Error(t, cmd.Execute())
}
