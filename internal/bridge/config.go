package bridge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBroker = "localhost"
	DefaultPort   = 1883
	DefaultPrefix = "pidloop"
	DefaultClient = "pidloop-bridge"
)

// Config is the broker connection and topic layout. Values come from the
// environment, optionally seeded by .env files.
type Config struct {
	Broker   string
	Port     int
	Username string
	Password string
	ClientID string
	Prefix   string
	QoS      byte
}

type Topics struct {
	Setpoint string
	Feedback string
	Output   string
	Reset    string
	Tune     string
	Status   string
}

// LoadEnv reads PIDLOOP_MQTT_* settings. Files are read with godotenv and
// never override variables already set in the process environment. Missing
// files are ignored.
func LoadEnv(files ...string) (Config, error) {
	fileEnv := map[string]string{}
	for _, f := range files {
		env, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range env {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}

	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileEnv[key]
	})
}

func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Broker:   DefaultBroker,
		Port:     DefaultPort,
		ClientID: DefaultClient,
		Prefix:   DefaultPrefix,
		Username: getenv("PIDLOOP_MQTT_USERNAME"),
		Password: getenv("PIDLOOP_MQTT_PASSWORD"),
	}

	if v := getenv("PIDLOOP_MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := getenv("PIDLOOP_MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getenv("PIDLOOP_MQTT_PREFIX"); v != "" {
		cfg.Prefix = strings.TrimSuffix(v, "/")
	}
	if v := getenv("PIDLOOP_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("PIDLOOP_MQTT_PORT: invalid port %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("PIDLOOP_MQTT_QOS"); v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil || qos < 0 || qos > 2 {
			return Config{}, fmt.Errorf("PIDLOOP_MQTT_QOS: must be 0, 1 or 2, got %q", v)
		}
		cfg.QoS = byte(qos)
	}

	return cfg, nil
}

// BrokerURL accepts a bare host or a full URL in Broker.
func (c Config) BrokerURL() string {
	if strings.Contains(c.Broker, "://") {
		return c.Broker
	}
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

func (c Config) Topics() Topics {
	return Topics{
		Setpoint: c.Prefix + "/setpoint",
		Feedback: c.Prefix + "/feedback",
		Output:   c.Prefix + "/output",
		Reset:    c.Prefix + "/reset",
		Tune:     c.Prefix + "/tune",
		Status:   c.Prefix + "/status",
	}
}

// Subscriptions are the topics the bridge listens on.
func (t Topics) Subscriptions() []string {
	return []string{t.Setpoint, t.Feedback, t.Reset, t.Tune}
}
