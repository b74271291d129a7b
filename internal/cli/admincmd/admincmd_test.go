package admincmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nuwa-agi/nuwa/internal/audit/chain"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%s %v: %v (%s)", cmd.Name(), args, err, out.String())
	}
	return out.String()
}

func testEnv() *Env {
	v := viper.New()
	v.Set("auth.jwtsecret", "cli-secret")
	v.Set("database.dsn", ":memory:")
	return &Env{V: v}
}

func TestTokenIssueThenVerify(t *testing.T) {
	env := testEnv()
	tok := strings.TrimSpace(run(t, NewToken(env), "issue", "--sub", "u-1", "--team", "t-1", "--role", "editor"))
	if tok == "" {
		t.Fatal("empty token")
	}
	got := run(t, NewToken(env), "verify", tok)
	if !strings.Contains(got, "sub=u-1") || !strings.Contains(got, "team=t-1") || !strings.Contains(got, "role=editor") {
		t.Fatalf("verify output %q", got)
	}
}

func TestTokenIssueRejectsUnknownRole(t *testing.T) {
	cmd := NewToken(testEnv())
	cmd.SetArgs([]string{"issue", "--sub", "u-1", "--role", "root"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSecretExpandsEnv(t *testing.T) {
	t.Setenv("NUWA_TEST_SECRET", "from-env")
	v := viper.New()
	v.Set("auth.jwtsecret", "${NUWA_TEST_SECRET}")
	got, err := (&Env{V: v}).Secret()
	if err != nil || got != "from-env" {
		t.Fatalf("secret = %q, %v", got, err)
	}
	if _, err := (&Env{V: viper.New()}).Secret(); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestPlansTable(t *testing.T) {
	out := run(t, NewPlans(testEnv()))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 7 {
		t.Fatalf("want header plus 6 plans, got %q", out)
	}
	if !strings.HasPrefix(lines[1], "basic") || !strings.HasPrefix(lines[6], "unlimited") {
		t.Fatalf("plans not sorted by price: %q", out)
	}
}

func TestMigrateAndCreateUser(t *testing.T) {
	env := testEnv()
	run(t, NewMigrate(env))
	id := strings.TrimSpace(run(t, NewUser(env), "create", "--username", "root", "--password", "s3cret-pass", "--role", "admin"))
	if id == "" {
		t.Fatal("no id printed")
	}
}

func TestAuditVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := chain.NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []string{"sim-1", "sim-2"} {
		if err := w.Log(chain.KindLifecycle, "u-1", target, map[string]string{"verb": "start"}); err != nil {
			t.Fatal(err)
		}
	}
	_ = w.Close()
	if out := run(t, NewAudit(), "verify", path); !strings.Contains(out, "2 records ok") {
		t.Fatalf("verify output %q", out)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Replace(b, []byte("sim-1"), []byte("sim-9"), 1), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := NewAudit()
	cmd.SetArgs([]string{"verify", path})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("tampered log verified")
	}
}
