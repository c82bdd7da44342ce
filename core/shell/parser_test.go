package shell

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MaxStages: 32, MaxArgs: 256}

func TestParse_blankLine(t *testing.T) {
	pl, err := Parse(nil, "", testLimits)
	assert.NoError(t, err)
	assert.Nil(t, pl)
}

func TestParse(t *testing.T) {
	cases := map[string]struct {
		tokens []string
		want   Pipeline
	}{
		"single command": {
			tokens: []string{"ls", "-l"},
			want:   Pipeline{Stages: []Stage{{"ls", "-l"}}},
		},
		"two stages": {
			tokens: []string{"ls", "-l", "|", "grep", ".c"},
			want:   Pipeline{Stages: []Stage{{"ls", "-l"}, {"grep", ".c"}}},
		},
		"three stages": {
			tokens: []string{"ls", "|", "grep", ".c", "|", "wc", "-l"},
			want:   Pipeline{Stages: []Stage{{"ls"}, {"grep", ".c"}, {"wc", "-l"}}},
		},
		"truncating redirect": {
			tokens: []string{"ls", "-l", ">", "ls.txt"},
			want: Pipeline{
				Stages:   []Stage{{"ls", "-l"}},
				Redirect: &Redirect{Path: "ls.txt"},
			},
		},
		"appending redirect": {
			tokens: []string{"ls", "-l", ">>", "ls.txt"},
			want: Pipeline{
				Stages:   []Stage{{"ls", "-l"}},
				Redirect: &Redirect{Path: "ls.txt", Append: true},
			},
		},
		"pipeline with redirect": {
			tokens: []string{"cat", "f", "|", "grep", "x", ">>", "out.txt"},
			want: Pipeline{
				Stages:   []Stage{{"cat", "f"}, {"grep", "x"}},
				Redirect: &Redirect{Path: "out.txt", Append: true},
			},
		},
		"background": {
			tokens: []string{"sleep", "5", "&"},
			want: Pipeline{
				Stages:     []Stage{{"sleep", "5"}},
				Background: true,
			},
		},
		"background pipeline": {
			tokens: []string{"ls", "|", "wc", "&"},
			want: Pipeline{
				Stages:     []Stage{{"ls"}, {"wc"}},
				Background: true,
			},
		},
		"operator-looking argument": {
			tokens: []string{"echo", "a|b"},
			want:   Pipeline{Stages: []Stage{{"echo", "a|b"}}},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := Parse(tc.tokens, "", testLimits)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, &tc.want, got)
		})
	}
}

func TestParse_keepsCmdline(t *testing.T) {
	pl, err := Parse([]string{"sleep", "5", "&"}, "sleep 5 &", testLimits)
	require.NoError(t, err)
	assert.Equal(t, "sleep 5 &", pl.Cmdline)
}

func TestParse_errors(t *testing.T) {
	cases := map[string]struct {
		tokens  []string
		limits  Limits
		wantErr error
	}{
		"leading pipe":          {[]string{"|", "ls"}, testLimits, ErrEmptyStage},
		"trailing pipe":         {[]string{"ls", "|"}, testLimits, ErrEmptyStage},
		"double pipe":           {[]string{"ls", "|", "|", "wc"}, testLimits, ErrEmptyStage},
		"lone ampersand":        {[]string{"&"}, testLimits, ErrEmptyStage},
		"redirect no filename":  {[]string{"ls", ">"}, testLimits, ErrMissingFilename},
		"redirect to operator":  {[]string{"ls", ">", "|", "wc"}, testLimits, ErrMissingFilename},
		"two redirects":         {[]string{"ls", ">", "a", ">>", "b"}, testLimits, ErrDoubleRedirect},
		"ampersand mid-line":    {[]string{"sleep", "&", "ls"}, testLimits, ErrBackgroundNotEnd},
		"too many stages":       {[]string{"a", "|", "b", "|", "c"}, Limits{MaxStages: 2, MaxArgs: 256}, ErrTooManyStages},
		"too many arguments":    {[]string{"a", "b", "c"}, Limits{MaxStages: 32, MaxArgs: 2}, ErrTooManyArgs},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			pl, err := Parse(tc.tokens, "", tc.limits)
			assert.Nil(t, pl)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// The rendered parse errors are user-visible; pin them with golden files.
func TestParse_errorText(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithTestNameForDir(true),
	)

	cases := map[string][]string{
		"empty-stage":        {"ls", "|"},
		"missing-filename":   {"ls", ">"},
		"double-redirect":    {"ls", ">", "a", ">", "b"},
		"background-not-end": {"sleep", "&", "ls"},
	}

	for tn, tokens := range cases {
		_, err := Parse(tokens, "", testLimits)
		require.Error(t, err, tn)
		g.Assert(t, tn, []byte(err.Error()))
	}
}
