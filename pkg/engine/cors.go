package engine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/apicentric/pulsed/pkg/service"
)

var defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}

// applyCORS sets cross-origin headers from the definition's CORS config and
// answers preflight requests. It reports whether the request was fully
// handled. The config is read from the definition snapshot per request so
// edits take effect immediately.
func (rt *ServiceRuntime) applyCORS(w http.ResponseWriter, r *http.Request, def *service.Definition) bool {
	cfg := def.CORS
	if cfg == nil || !cfg.Enabled {
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	allowed := allowOriginValue(cfg, origin)
	if allowed == "" {
		return false
	}

	w.Header().Set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		w.Header().Add("Vary", "Origin")
	}

	methods := cfg.AllowMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))

	if len(cfg.AllowHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
	} else if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		w.Header().Set("Access-Control-Allow-Headers", requested)
	}

	if r.Method == http.MethodOptions {
		if cfg.MaxAgeSecs > 0 {
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAgeSecs))
		}
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func allowOriginValue(cfg *service.CORSConfig, origin string) string {
	if len(cfg.AllowOrigins) == 0 {
		return "*"
	}
	for _, allowed := range cfg.AllowOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
