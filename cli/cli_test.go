package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/auth"
	"github.com/quelio/engine/credentials"
)

const oneDay = `{"14/01/2026": ["08:30", "12:00", "13:00", "18:30"]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QUELIO_CONFIG", "")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_TextReport(t *testing.T) {
	// GIVEN: A punch file with one full day
	path := writeFile(t, "punches.json", oneDay)

	// WHEN: Computing as of the following week
	out, err := run(t, "", "compute", path, "--now", "2026-01-20T09:00:00Z")

	// THEN: The week, the day and its credits are printed
	require.NoError(t, err)
	assert.Contains(t, out, "2026-w-03")
	assert.Contains(t, out, "14-01-2026")
	assert.Contains(t, out, "08:30 12:00 13:00 18:30")
	assert.Contains(t, out, "paid 09:14 (9.23h)")
	assert.Contains(t, out, "+ 00:07 => morning break")
	assert.Contains(t, out, "+ 00:07 => afternoon break")
}

func TestCompute_JSONReport(t *testing.T) {
	path := writeFile(t, "punches.json", oneDay)

	out, err := run(t, "", "compute", path, "--now", "2026-01-20T09:00:00Z", "--format", "json")

	require.NoError(t, err)
	var weeks map[accounting.WeekKey]accounting.WeekBreakdown
	require.NoError(t, json.Unmarshal([]byte(out), &weeks))
	require.Contains(t, weeks, accounting.WeekKey("2026-w-03"))
	assert.Equal(t, accounting.NewMinutes(9, 14), weeks["2026-w-03"].TotalPaid)
}

func TestCompute_ListOfPagesFromStdin(t *testing.T) {
	// GIVEN: Two portal pages for the same day
	pages := `[{"14/01/2026": ["13:00", "18:30"]}, {"14/01/2026": ["08:30", "12:00"]}]`

	// WHEN: Reading them from stdin
	out, err := run(t, pages, "compute", "-", "--now", "2026-01-20T09:00:00Z")

	// THEN: They are merged into one day
	require.NoError(t, err)
	assert.Contains(t, out, "08:30 12:00 13:00 18:30")
}

func TestCompute_LegacyTotals(t *testing.T) {
	path := writeFile(t, "punches.json", oneDay)

	out, err := run(t, "", "compute", path, "--now", "2026-01-20T09:00:00Z", "--legacy")

	require.NoError(t, err)
	assert.Equal(t, "total_effective 09:00\ntotal_paid 09:14\n", out)
}

func TestCompute_RejectsMalformedInput(t *testing.T) {
	_, err := run(t, "", "compute", writeFile(t, "bad.json", `"nope"`))
	assert.Error(t, err)

	_, err = run(t, "", "compute", writeFile(t, "bad-punch.json", `{"14/01/2026": ["8h30", "12:00"]}`))
	assert.ErrorIs(t, err, accounting.ErrMalformedPunch)

	_, err = run(t, "", "compute", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCompute_UnknownFormat(t *testing.T) {
	_, err := run(t, "", "compute", writeFile(t, "p.json", oneDay), "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestCompute_UsesConfiguredRules(t *testing.T) {
	// GIVEN: A config crediting 10 minutes per break
	cfg := writeFile(t, "quelio.json", `{"rules": {"break_credit": 10}}`)
	path := writeFile(t, "punches.json", oneDay)

	// WHEN: Computing
	out, err := run(t, "", "--config", cfg, "compute", path, "--now", "2026-01-20T09:00:00Z", "--legacy")

	// THEN: The larger credit shows in the paid total
	require.NoError(t, err)
	assert.Contains(t, out, "total_paid 09:20")
}

// =============================================================================
// HELPERS
// =============================================================================

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quelio.json")

	out, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)

	_, err = run(t, "", "config", "init", path)
	assert.Error(t, err)
}

func TestAdminHash_VerifiesWithCheckAdmin(t *testing.T) {
	out, err := run(t, "s3cret phrase\n", "admin", "hash")

	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, auth.CheckAdmin("admin", hash, "admin", "s3cret phrase"))
}

func TestCredentials_SetAndDelete(t *testing.T) {
	gokeyring.MockInit()

	_, err := run(t, "hunter2\n", "credentials", "set", "--user", "alice")
	require.NoError(t, err)
	stored, err := credentials.GetPassword("alice")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", stored)

	_, err = run(t, "", "credentials", "delete", "--user", "alice")
	require.NoError(t, err)
	_, err = credentials.GetPassword("alice")
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestFetch_RequiresPortalURL(t *testing.T) {
	t.Setenv("QUELIO_KELIO_URL", "")
	_, err := run(t, "", "fetch", "--user", "alice", "--password", "x")
	assert.ErrorContains(t, err, "kelio_url")
}

func TestReadSecret(t *testing.T) {
	got, err := readSecret(strings.NewReader("ignored\n"), "from-flag")
	require.NoError(t, err)
	assert.Equal(t, "from-flag", got)

	got, err = readSecret(strings.NewReader("with spaces\r\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "with spaces", got)

	_, err = readSecret(strings.NewReader(""), "")
	assert.Error(t, err)
}
