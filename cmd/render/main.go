// Command render resolves a batch of maps offline and writes the results
// as zstd-compressed JSONL, one resolved map per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"mapforge.dev/internal/gen/catalog"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/gen/tile"
	"mapforge.dev/internal/gen/tilesheet"
	"mapforge.dev/internal/persistence/rendercache"
)

type outputLine struct {
	Map      ident.ID                 `json:"map"`
	Z        int                      `json:"z,omitempty"`
	Seed     int64                    `json:"seed"`
	Buffer   *render.Buffer           `json:"buffer"`
	Sprites  []render.SpritePlacement `json:"sprites,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
}

func main() {
	var (
		dataDir   = flag.String("data", "./data", "game data directory")
		sheetPath = flag.String("tilesheet", "", "tile_config.json path (enables the sprite pass)")
		maps      = flag.String("maps", "", "comma-separated overmap terrain ids")
		seed      = flag.Int64("seed", 1337, "base seed")
		count     = flag.Int("count", 1, "seeds per map (seed, seed+1, ...)")
		rotation  = flag.Int("rotation", 0, "rotation in degrees (0, 90, 180, 270)")
		zLevel    = flag.Int("z", 0, "z-level tag on results and cache keys")
		workers   = flag.Int("workers", 4, "parallel resolutions")
		outPath   = flag.String("o", "out.jsonl.zst", "output path")
		cachePath = flag.String("cache", "", "also warm this render cache db")
	)
	flag.Parse()

	names := splitMaps(*maps)
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "missing -maps")
		os.Exit(2)
	}
	if *rotation%90 != 0 || *rotation < 0 || *rotation > 270 {
		fmt.Fprintln(os.Stderr, "rotation must be 0, 90, 180 or 270")
		os.Exit(2)
	}

	cat, err := catalog.Load(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}

	var selector *tilesheet.Selector
	if *sheetPath != "" {
		sheet, err := tilesheet.Load(*sheetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tilesheet:", err)
			os.Exit(1)
		}
		selector = &tilesheet.Selector{Sheet: sheet, App: cat}
	}

	pool := &render.Pool{
		Renderer: &render.Renderer{Cat: cat, Selector: selector},
		Workers:  *workers,
	}

	var reqs []render.Request
	for _, name := range names {
		for i := 0; i < *count; i++ {
			reqs = append(reqs, render.Request{
				Map:      ident.ID(name),
				Z:        *zLevel,
				Seed:     *seed + int64(i),
				Rotation: tile.Rotation(*rotation / 90),
			})
		}
	}

	results, poolErr := pool.ResolveAll(context.Background(), reqs)
	if poolErr != nil {
		// Partial failures: write what succeeded, then report.
		fmt.Fprintln(os.Stderr, "resolve:", poolErr)
		if results == nil {
			os.Exit(1)
		}
	}

	written, err := writeResults(*outPath, results)
	if err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}

	if *cachePath != "" {
		digest, _ := cat.Digest()
		cache, err := rendercache.Open(*cachePath, digest)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open cache:", err)
			os.Exit(1)
		}
		for i, res := range results {
			if res == nil {
				continue
			}
			cache.Put(rendercache.Key{Map: res.Map, Z: res.Z, Seed: res.Seed, Rotation: reqs[i].Rotation}, res)
		}
		cache.Flush()
		if err := cache.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close cache:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("rendered %d/%d maps to %s\n", written, len(reqs), *outPath)
	if poolErr != nil {
		os.Exit(1)
	}
}

func splitMaps(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeResults(path string, results []*render.Result) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(enc, 128*1024)

	written := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		line := outputLine{
			Map:     res.Map,
			Z:       res.Z,
			Seed:    res.Seed,
			Buffer:  res.Buffer,
			Sprites: res.Sprites,
		}
		for _, warn := range res.Warnings {
			line.Warnings = append(line.Warnings, warn.String())
		}
		b, err := json.Marshal(line)
		if err != nil {
			return written, err
		}
		if _, err := w.Write(b); err != nil {
			return written, err
		}
		if err := w.WriteByte('\n'); err != nil {
			return written, err
		}
		written++
	}
	if err := w.Flush(); err != nil {
		return written, err
	}
	return written, enc.Close()
}
