package records

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/estate-search/internal/kv"
)

const demoTokenPrefix = "demo_"

type Config struct {
	// Mode is remote, local or auto.
	Mode     string
	APIURL   string
	APIToken string
}

// Open picks the record store once. In auto mode a demo token or a missing
// API URL selects the local store.
func Open(cfg Config, store kv.KV, hc *http.Client, logger *slog.Logger) (RecordStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" || mode == "auto" {
		mode = "remote"
		if strings.HasPrefix(cfg.APIToken, demoTokenPrefix) || strings.TrimSpace(cfg.APIURL) == "" {
			mode = "local"
		}
	}

	switch mode {
	case "local":
		if store == nil {
			return nil, fmt.Errorf("local record store needs a kv store")
		}
		logger.Info("record store selected", "store", "local")
		return NewLocal(store, logger), nil
	case "remote":
		r, err := NewRemote(cfg.APIURL, cfg.APIToken, hc, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("record store selected", "store", "remote", "url", cfg.APIURL)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown record store %q (want remote|local|auto)", cfg.Mode)
	}
}
