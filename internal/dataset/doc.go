// Package dataset reads the attendance CSV, filters it by year and region,
// and keeps the parsed rows in an explicit in-memory cache.
//
// The expected header carries the four identity columns (Estabelecimento,
// Região de Saúde, Ano de Competência, Mês de Competência) plus one column per
// condition category. A UTF-8 byte-order mark is stripped, extra columns are
// ignored and empty counters read as zero. Malformed cells fail the whole load
// with a *ParseError naming the line and column.
//
// The Cache is keyed by the file's absolute path, modification time and size,
// so replacing the file is picked up on the next Get. Invalidate forces a
// reload.
package dataset
