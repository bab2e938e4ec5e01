package mw

import (
	"net/http"

	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/utils"
)

// AllowOnlyCIDRS lets through only clients whose IP matches one of allowed
// (exact IPs or CIDRs). An empty list disables filtering. trustProxy makes
// the client IP come from proxy headers instead of RemoteAddr.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("cidr filter disabled")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("cidr filter enabled",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("request rejected by cidr filter",
					logger.String("client_ip", ip),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
