// Package database handles the MySQL connection used by the rule store.
//
// It wraps GORM to configure the connection (DSN encoding, pool sizing, I/O
// timeouts) from the application's configuration. The connection is optional:
// without a database the engine still ingests and queries, it just has no
// persistent matching rules.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Rule store database unavailable", zap.Error(err))
//	}
package database
