package demux

import (
	"context"
	"net/url"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
)

const Scheme = "demultiplexer"

type Registrar interface {
	Register(scheme string, open tilesource.Opener)
}

// Register makes demultiplexer:// URIs openable through r. Sources named in
// the URI query are resolved with loader, which is usually r itself.
func Register(r Registrar, loader Loader, l logger.Logger) {
	r.Register(Scheme, func(ctx context.Context, uri *url.URL) (tilesource.Source, error) {
		return New(ctx, queryParams(uri.Query()), loader, l)
	})
}

// queryParams flattens a query keeping the first value of every key.
func queryParams(q url.Values) map[string]string {
	params := make(map[string]string, len(q))
	for key, values := range q {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
