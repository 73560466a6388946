package vectorstore

import (
	"net/url"
	"strings"

	"github.com/xxxsen/ragbase/internal/db"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const ProviderSupabase = "supabase"

type supabaseConfig struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
}

// supabaseHost maps a project URL such as https://abc.supabase.co to the
// project's direct database host db.abc.supabase.co.
func supabaseHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", appErr.Configuration("invalid supabase url: %v", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", appErr.Configuration("invalid supabase url: missing host")
	}
	if strings.HasPrefix(host, "db.") {
		return host, nil
	}
	return "db." + host, nil
}

func createSupabaseFactory(args interface{}, opts Options) (Store, error) {
	cfg := &supabaseConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Key) == "" {
		return nil, appErr.Configuration("supabase provider requires url and key")
	}
	host, err := supabaseHost(cfg.URL)
	if err != nil {
		return nil, err
	}
	dbCfg := db.Config{
		Host:     host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Key,
		DBName:   cfg.Database,
		SSLMode:  "require",
	}
	if dbCfg.Port == 0 {
		dbCfg.Port = defaultPostgresPort
	}
	if dbCfg.User == "" {
		dbCfg.User = defaultPostgresUser
	}
	if dbCfg.DBName == "" {
		dbCfg.DBName = defaultPostgresDB
	}
	return newPostgresStore(ProviderSupabase, dbCfg, opts)
}

func init() {
	Register(ProviderSupabase, createSupabaseFactory)
}
