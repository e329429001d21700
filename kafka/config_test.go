package kafka

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledConfig() Config {
	cfg := Config{Enabled: true, Brokers: []string{"localhost:9092"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Consumer: ConsumerConfig{GroupID: "custom", RetryBackoff: time.Second}}
	cfg.ApplyDefaults()

	assert.Equal(t, "3.8.0", cfg.Version)
	assert.Equal(t, "cachengine", cfg.ClientID)
	assert.Equal(t, "custom", cfg.Consumer.GroupID)
	assert.Equal(t, []string{"cache.write-events"}, cfg.Consumer.Topics)
	assert.Equal(t, int64(-1), cfg.Consumer.OffsetInitial)
	assert.Equal(t, "range", cfg.Consumer.RebalanceStrategy)
	assert.Equal(t, time.Second, cfg.Consumer.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.Consumer.SessionTimeout)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate(), "disabled consumer is not checked")

	cfg := enabledConfig()
	require.NoError(t, cfg.Validate())

	cfg.Brokers = nil
	assert.Error(t, cfg.Validate())

	cfg = enabledConfig()
	cfg.Consumer.RebalanceStrategy = "random"
	assert.Error(t, cfg.Validate())

	cfg = enabledConfig()
	cfg.Consumer.OffsetInitial = 5
	assert.Error(t, cfg.Validate())

	cfg = enabledConfig()
	cfg.SASL = &SASLConfig{Enabled: true, Mechanism: "GSSAPI", Username: "u", Password: "p"}
	assert.Error(t, cfg.Validate())
	cfg.SASL.Enabled = false
	assert.NoError(t, cfg.Validate())

	cfg = enabledConfig()
	cfg.TLS = &TLSConfig{Enabled: true, CertFile: "client.pem"}
	assert.Error(t, cfg.Validate(), "cert without key")
}

func TestBuildSaramaConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.Consumer.OffsetInitial = -2
	cfg.Consumer.RebalanceStrategy = "sticky"
	cfg.SASL = &SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-512", Username: "svc", Password: "secret"}

	sc, err := buildSaramaConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cachengine", sc.ClientID)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.True(t, sc.Consumer.Offsets.AutoCommit.Enable)
	assert.True(t, sc.Consumer.Return.Errors)
	require.Len(t, sc.Consumer.Group.Rebalance.GroupStrategies, 1)
	assert.Equal(t, "sticky", sc.Consumer.Group.Rebalance.GroupStrategies[0].Name())

	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), sc.Net.SASL.Mechanism)
	require.NotNil(t, sc.Net.SASL.SCRAMClientGeneratorFunc)
	_, ok := sc.Net.SASL.SCRAMClientGeneratorFunc().(*XDGSCRAMClient)
	assert.True(t, ok)

	plain := enabledConfig()
	plain.SASL = &SASLConfig{Enabled: true, Mechanism: "PLAIN", Username: "svc", Password: "secret"}
	sc, err = buildSaramaConfig(plain)
	require.NoError(t, err)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypePlaintext), sc.Net.SASL.Mechanism)
	assert.Equal(t, sarama.OffsetNewest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, "range", sc.Consumer.Group.Rebalance.GroupStrategies[0].Name())
}

func TestBuildSaramaConfig_Errors(t *testing.T) {
	cfg := enabledConfig()
	cfg.Version = "not-a-version"
	_, err := buildSaramaConfig(cfg)
	assert.Error(t, err)

	_, err = NewConsumerGroup(cfg, nil)
	assert.Error(t, err)

	cfg = enabledConfig()
	cfg.TLS = &TLSConfig{Enabled: true, CAFile: filepath.Join(t.TempDir(), "missing-ca.pem")}
	_, err = buildSaramaConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read ca file failed")
}

func TestBuildTLSConfig_InsecureSkipVerify(t *testing.T) {
	tlsCfg, err := buildTLSConfig(TLSConfig{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, tlsCfg.InsecureSkipVerify)
	assert.Nil(t, tlsCfg.RootCAs)
	assert.Empty(t, tlsCfg.Certificates)
}

func TestXDGSCRAMClient(t *testing.T) {
	for _, fn := range []func() sarama.SCRAMClient{scramClientFor(SHA256), scramClientFor(SHA512)} {
		c := fn()
		require.NoError(t, c.Begin("svc", "secret", ""))

		first, err := c.Step("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(first, "n,,n=svc,r="), first)
		assert.False(t, c.Done())
	}
}
