package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/types"
)

const cliUserID = "0f8e1d2c-3b4a-4c5d-9e6f-7a8b9c0d1e2f"

const contextYAML = `business_model: saas
niche: Clínicas odontológicas
current_stage: growth
team_size: 2-5
main_bottleneck:
  - acquisition
  - sales
monthly_revenue: 20k-100k
goal: Faturar R$1M em 2026
target_audience: Donos de clínicas
marketing_channels: Instagram, indicação
investment_capacity: 10k
time_availability: 20h
`

// cliEnv isolates configuration for one test: a temp database, no .env file,
// no LLM credentials, and zero placeholder delays.
func cliEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "vision.yaml")
	cfgYAML := `llm:
  generate_mock_delay: 0s
  recalculate_mock_delay: 0s
  chat_mock_delay: 0s
log:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VISION_DEV_MODE", "true")
	t.Setenv("VISION_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("VISION_CONFIG_PATH", cfgPath)
	t.Setenv("VISION_DB_PATH", filepath.Join(dir, "vision.db"))
	t.Setenv("VISION_LLM_PROVIDER", "cohere")
	t.Setenv("COHERE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CAKTO_OFFER_ID", "")
	t.Setenv("CAKTO_CLIENT_ID", "")
	t.Setenv("CAKTO_CLIENT_SECRET", "")
	return dir
}

func writeContextFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "context.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// executeCmd runs the root command with captured output. Cobra parses into
// package-level variables, so they are reset first.
func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	planJSONOutput = false
	planUserID = ""
	planContextFile = ""
	checkoutJSONOutput = false
	checkoutSearch = ""
	checkoutName = ""
	checkoutEmail = ""
	checkoutDocument = ""
	checkoutPhone = ""
	checkoutCoupon = ""

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

func TestPlanGenerate_PrintsPlaceholderPlan(t *testing.T) {
	// Given: no LLM credential and a complete context file
	dir := cliEnv(t)
	path := writeContextFile(t, dir, contextYAML)

	// When: generating without a user
	stdout, _, err := executeCmd(t, "plan", "generate", "--context", path)

	// Then: the plan is printed with its goal and all weeks
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Meta: Faturar R$1M em 2026") {
		t.Errorf("stdout missing goal:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Q4:") {
		t.Errorf("stdout missing quarter lines:\n%s", stdout)
	}
	if !strings.Contains(stdout, "\n52 ") {
		t.Errorf("stdout missing week 52:\n%s", stdout)
	}
}

func TestPlanGenerate_JSON(t *testing.T) {
	dir := cliEnv(t)
	path := writeContextFile(t, dir, contextYAML)

	stdout, _, err := executeCmd(t, "plan", "generate", "--context", path, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var plan types.StrategicPlan
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatalf("output is not a plan: %v\n%s", err, stdout)
	}
	if plan.Goal != "Faturar R$1M em 2026" {
		t.Errorf("goal = %q", plan.Goal)
	}
	if len(plan.WeeklyTactics) != types.WeeksPerPlan {
		t.Errorf("weekly tactics = %d, want %d", len(plan.WeeklyTactics), types.WeeksPerPlan)
	}
}

func TestPlanGenerate_RejectsIncompleteContext(t *testing.T) {
	// Given: a context without a goal
	dir := cliEnv(t)
	path := writeContextFile(t, dir, strings.Replace(contextYAML, "goal: Faturar R$1M em 2026\n", "", 1))

	// When
	_, _, err := executeCmd(t, "plan", "generate", "--context", path)

	// Then
	if err == nil || !strings.Contains(err.Error(), "context file") {
		t.Errorf("err = %v, want context file error", err)
	}
}

func TestPlanGenerate_RequiresContextFlag(t *testing.T) {
	cliEnv(t)
	if _, _, err := executeCmd(t, "plan", "generate"); err == nil {
		t.Error("expected error without --context")
	}
}

func TestPlanGenerateForUser_ThenShow(t *testing.T) {
	// Given: a plan generated for a user
	dir := cliEnv(t)
	path := writeContextFile(t, dir, contextYAML)

	stdout, _, err := executeCmd(t, "plan", "generate", "--context", path, "--user", strings.ToUpper(cliUserID))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(stdout, "is now active for "+cliUserID) {
		t.Errorf("generate stdout:\n%s", stdout)
	}

	// When: showing the user's plan
	stdout, _, err = executeCmd(t, "plan", "show", "--user", cliUserID)

	// Then: progress starts at zero with Q1 in progress
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Meta: Faturar R$1M em 2026", "Progresso: 0% (0/52 semanas)", "Q1", "Q4"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestPlanShow_Errors(t *testing.T) {
	cliEnv(t)

	// Given: an invalid user id
	_, _, err := executeCmd(t, "plan", "show", "--user", "not-a-uuid")
	if err == nil || !strings.Contains(err.Error(), "must be a UUID") {
		t.Errorf("err = %v, want UUID error", err)
	}

	// Given: a user without a plan
	_, _, err = executeCmd(t, "plan", "show", "--user", cliUserID)
	if err == nil || !strings.Contains(err.Error(), "load plan") {
		t.Errorf("err = %v, want load plan error", err)
	}
}

func TestCheckoutLink_ConfiguredOffer(t *testing.T) {
	// Given: a configured offer id, so no API call is needed
	cliEnv(t)
	t.Setenv("CAKTO_OFFER_ID", "abc123")

	// When
	stdout, _, err := executeCmd(t, "checkout", "link",
		"--email", "ana@example.com", "--name", "Ana Souza", "--coupon", "VISION10")

	// Then: the printed link targets the offer and carries the customer
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(strings.TrimSpace(stdout))
	if err != nil {
		t.Fatalf("output is not a URL: %v", err)
	}
	if u.Host != "pay.cakto.com.br" || !strings.HasSuffix(u.Path, "/abc123") {
		t.Errorf("url = %s", u)
	}
	q := u.Query()
	if q.Get("email") != "ana@example.com" {
		t.Errorf("email param = %q", q.Get("email"))
	}
	if q.Get("name") != "Ana Souza" {
		t.Errorf("name param = %q", q.Get("name"))
	}
}

func TestCheckoutLink_JSON(t *testing.T) {
	cliEnv(t)
	t.Setenv("CAKTO_OFFER_ID", "abc123")

	stdout, _, err := executeCmd(t, "checkout", "link", "--email", "ana@example.com", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got checkout.Checkout
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	got.CheckoutURL = ""
	want := checkout.Checkout{OfferID: "abc123", Status: "pending"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("checkout mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckoutLink_InvalidEmail(t *testing.T) {
	cliEnv(t)
	t.Setenv("CAKTO_OFFER_ID", "abc123")

	_, _, err := executeCmd(t, "checkout", "link", "--email", "not-an-email")
	if err == nil || !strings.Contains(err.Error(), "invalid customer") {
		t.Errorf("err = %v, want invalid customer", err)
	}
}

// fakePaymentAPI serves the token and product endpoints of the payment API.
func fakePaymentAPI(t *testing.T) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/public_api/token/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/public_api/products/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1,"results":[{"id":"p1","name":"Vision 2026","price":1497.5,"status":"active"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("CAKTO_API_URL", srv.URL)
	t.Setenv("CAKTO_CLIENT_ID", "id")
	t.Setenv("CAKTO_CLIENT_SECRET", "secret")
}

func TestCheckoutProducts(t *testing.T) {
	// Given: a reachable payment API with one product
	cliEnv(t)
	fakePaymentAPI(t)

	// When
	stdout, _, err := executeCmd(t, "checkout", "products")

	// Then: the product is listed with a formatted price
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"p1", "Vision 2026", "R$ 1,497.5", "active"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}
