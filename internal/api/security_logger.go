package api

import (
	"log/slog"
	"time"

	"github.com/clarkflip/pf-verify/internal/logger"
)

// SecurityLogger writes audit lines that never contain a raw seed. Seeds
// are reduced to the first 16 hex chars of their SHA-256.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger derives a security logger from base.
func NewSecurityLogger(base *slog.Logger) *SecurityLogger {
	if base == nil {
		base = logger.L()
	}
	return &SecurityLogger{logger: base.With("component", "security")}
}

// LogEvaluateOperation records a per-game evaluation.
func (sl *SecurityLogger) LogEvaluateOperation(requestID, game, serverSeed, convention string, params map[string]any, cached bool) {
	sl.logger.Info("evaluate_operation",
		"request_id", requestID,
		"game", game,
		"server_hash", hashSeed(serverSeed),
		"convention", convention,
		"params", sanitizeParams(params),
		"cached", cached,
		"engine_version", EngineVersion,
	)
}

// LogScanOperation records a scan with its range and target.
func (sl *SecurityLogger) LogScanOperation(requestID, serverSeed string, indexStart, indexEnd int, targetOp string, targetVal float64, limit int, filtered bool) {
	sl.logger.Info("scan_operation",
		"request_id", requestID,
		"server_hash", hashSeed(serverSeed),
		"index_range", []int{indexStart, indexEnd},
		"target_op", targetOp,
		"target_val", targetVal,
		"limit", limit,
		"filtered", filtered,
		"engine_version", EngineVersion,
	)
}

// LogVerifyOperation records a verification batch outcome.
func (sl *SecurityLogger) LogVerifyOperation(requestID, runID string, rounds, matched, mismatched, failed int) {
	sl.logger.Info("verify_operation",
		"request_id", requestID,
		"run_id", runID,
		"rounds", rounds,
		"matched", matched,
		"mismatched", mismatched,
		"failed", failed,
		"engine_version", EngineVersion,
	)
}

// LogSeedHashOperation logs only the resulting commitment.
func (sl *SecurityLogger) LogSeedHashOperation(requestID, resultHash string) {
	sl.logger.Info("seed_hash_operation",
		"request_id", requestID,
		"result_hash", logger.SeedHash(resultHash),
	)
}

// LogSecurityEvent logs failed validations and similar events.
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, description string, context map[string]any, remoteAddr string) {
	sl.logger.Warn("security_event",
		"request_id", requestID,
		"type", eventType,
		"description", description,
		"context", sanitizeParams(context),
		"remote_addr", remoteAddr,
	)
}

// LogAuditEvent logs health and metrics probes.
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]any) {
	sl.logger.Debug("audit_event",
		"request_id", requestID,
		"action", action,
		"resource", resource,
		"outcome", outcome,
		"details", sanitizeParams(details),
	)
}

// LogSystemStartup logs the server configuration on boot.
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]any) {
	sl.logger.Info("system_startup",
		"addr", addr,
		"config", sanitizeParams(config),
		"engine_version", EngineVersion,
		"git_commit", GitCommit,
		"build_time", BuildTime,
	)
}

// LogSystemShutdown logs the shutdown reason and uptime.
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Info("system_shutdown",
		"reason", reason,
		"uptime", uptime.String(),
		"engine_version", EngineVersion,
	)
}

// sanitizeParams hashes seeds and redacts secrets.
func sanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		switch key {
		case "server_seed", "serverSeed", "server":
			if s, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(s)
			} else {
				sanitized[key+"_hash"] = "non_string_value"
			}
		case "secret", "password", "token", "api_key":
			sanitized[key] = "[REDACTED]"
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}
