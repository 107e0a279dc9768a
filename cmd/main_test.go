package main

import (
	"bytes"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// resetFlags resets the global flag.CommandLine to avoid "flag redefined" panic
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
}

func TestParseFlags_Default(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd"}
	assert.Equal(t, "config.env", parseFlags())
}

func TestParseFlags_Custom(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "-c", "myconfig.env"}
	assert.Equal(t, "myconfig.env", parseFlags())
}

func TestPrintBuildInfo_Output(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	buildVersion = "v1.0.0"
	buildCommit = "abcd1234"
	buildDate = "2026-01-15"

	printBuildInfo()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	output := buf.String()
	assert.True(t, strings.Contains(output, "v1.0.0"))
	assert.True(t, strings.Contains(output, "abcd1234"))
	assert.True(t, strings.Contains(output, "2026-01-15"))
}

func TestParseConfig_Defaults(t *testing.T) {
	os.Clearenv()

	appHost, appPort,
		pgHost, pgPort, _, _, _,
		pgMaxOpenConns, pgMaxIdleConns,
		redisHost, redisPort, redisDB, _, cacheTTLSecond,
		kafkaHost, kafkaPort, kafkaTopic,
		logLevel, _, jwtExpSecond,
		transferFeeRate, transferFeeCap, _, _,
		_, _, providerFlatFee,
		platformWalletID, collectionWalletID,
		repaymentPollSecond, retryBaseSecond, retryMaxAttempts,
		err := parseConfig("does-not-exist.env")

	assert.NoError(t, err)
	assert.Equal(t, "localhost", appHost)
	assert.Equal(t, "8080", appPort)
	assert.Equal(t, "localhost", pgHost)
	assert.Equal(t, 5432, pgPort)
	assert.Equal(t, 16, pgMaxOpenConns)
	assert.Equal(t, 8, pgMaxIdleConns)
	assert.Equal(t, "localhost", redisHost)
	assert.Equal(t, 6379, redisPort)
	assert.Equal(t, 0, redisDB)
	assert.Equal(t, 3600, cacheTTLSecond)
	assert.Equal(t, "localhost", kafkaHost)
	assert.Equal(t, 9092, kafkaPort)
	assert.Equal(t, "wallet-transactions", kafkaTopic)
	assert.Equal(t, "info", logLevel)
	assert.Equal(t, 3600, jwtExpSecond)
	assert.Equal(t, "0.015", transferFeeRate)
	assert.Equal(t, "1000", transferFeeCap)
	assert.Equal(t, "0", providerFlatFee)
	assert.Equal(t, "", platformWalletID)
	assert.Equal(t, "", collectionWalletID)
	assert.Equal(t, 60, repaymentPollSecond)
	assert.Equal(t, 3600, retryBaseSecond)
	assert.Equal(t, 3, retryMaxAttempts)
}

func TestParseConfig_EnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_PORT", "9090")
	os.Setenv("POSTGRES_PORT", "5433")
	os.Setenv("KAFKA_TOPIC", "ledger-events")
	os.Setenv("TRANSFER_FEE_RATE", "0.02")
	defer os.Clearenv()

	_, appPort,
		_, pgPort, _, _, _,
		_, _,
		_, _, _, _, _,
		_, _, kafkaTopic,
		_, _, _,
		transferFeeRate, _, _, _,
		_, _, _,
		_, _,
		_, _, _,
		err := parseConfig("does-not-exist.env")

	assert.NoError(t, err)
	assert.Equal(t, "9090", appPort)
	assert.Equal(t, 5433, pgPort)
	assert.Equal(t, "ledger-events", kafkaTopic)
	assert.Equal(t, "0.02", transferFeeRate)
}

func TestParseConfig_InvalidPort(t *testing.T) {
	os.Clearenv()
	os.Setenv("POSTGRES_PORT", "not-a-number")
	defer os.Clearenv()

	_, _,
		_, _, _, _, _,
		_, _,
		_, _, _, _, _,
		_, _, _,
		_, _, _,
		_, _, _, _,
		_, _, _,
		_, _,
		_, _, _,
		err := parseConfig("does-not-exist.env")

	assert.Error(t, err)
}

func TestPercentPolicy(t *testing.T) {
	policy, err := percentPolicy("0.015", "1000")
	assert.NoError(t, err)

	fee, err := money.CalculateFee(money.MustParse("200.00"), policy)
	assert.NoError(t, err)
	assert.Equal(t, "3.00", fee.String())

	// The cap clamps large fees.
	fee, err = money.CalculateFee(money.MustParse("100000.00"), policy)
	assert.NoError(t, err)
	assert.Equal(t, "1000.00", fee.String())
}

func TestPercentPolicy_ZeroRate(t *testing.T) {
	policy, err := percentPolicy("0", "1000")
	assert.NoError(t, err)

	fee, err := money.CalculateFee(money.MustParse("200.00"), policy)
	assert.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestPercentPolicy_Invalid(t *testing.T) {
	_, err := percentPolicy("abc", "1000")
	assert.Error(t, err)
}

func TestOptionalWalletID(t *testing.T) {
	id, err := optionalWalletID("")
	assert.NoError(t, err)
	assert.Nil(t, id)

	want := "3f2f3a70-9df5-4f2b-8f5a-97b1b37b7a10"
	id, err = optionalWalletID(want)
	assert.NoError(t, err)
	assert.NotNil(t, id)
	assert.Equal(t, want, id.String())

	_, err = optionalWalletID("not-a-uuid")
	assert.Error(t, err)
}
