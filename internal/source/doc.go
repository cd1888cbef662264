// Package source fetches raster map tiles over HTTP.
//
// HTTPSource expands a URL template such as
// "https://tile.openstreetmap.org/{z}/{x}/{y}.png", downloads the tile and
// decodes it. Concurrent requests for the same tile share one download, and
// the raw bytes can be kept in a Cache (MemoryCache in-process, RedisCache
// across processes). Cache failures are logged and never fail a fetch.
//
// Errors wrap footprint.ErrFetch for transport problems and non-2xx
// responses, and footprint.ErrDecode for bytes that are not an image.
package source
