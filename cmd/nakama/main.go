// Command nakama builds the PaddleDuel Go runtime plugin:
//
//	go build -buildmode=plugin -trimpath -ldflags "-X main.version=$(git describe)" -o paddleduel.so ./cmd/nakama
package main

import (
	"context"
	"database/sql"

	"paddleduel/internal/ports/nakama"

	"github.com/heroiclabs/nakama-common/runtime"
)

// version is stamped at build time.
var version = "dev"

// InitModule is the symbol Nakama looks up in the plugin. Every log line the
// module writes carries the plugin version.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger.WithField("module_version", version), db, nk, initializer)
}

// main is never called when loaded as a plugin; it lets `go build ./...`
// compile this package under the default build mode.
func main() {}
