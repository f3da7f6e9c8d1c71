// Command cacheinspect prints the contents of a shader cache directory:
// per-store record counts, variant key breakdowns, usage rankings, and
// device-bound blob headers. It never modifies the files it reads.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/gogpu/shadercache"
	"github.com/gogpu/shadercache/diskcache"
)

func main() {
	var (
		dir     = flag.String("dir", ".", "cache directory to inspect")
		keys    = flag.Bool("keys", false, "list every variant key per store")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	shadercache.SetLogger(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))

	paths, err := filepath.Glob(filepath.Join(*dir, "*.bin"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cacheinspect: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Printf("no cache files under %s\n", *dir)
		return
	}
	sort.Strings(paths)

	failed := false
	for _, path := range paths {
		var err error
		switch {
		case strings.HasPrefix(filepath.Base(path), "pipeline-"):
			err = inspectBinaryBlob(path)
		case strings.Contains(filepath.Base(path), "-usage-"):
			err = inspectUsage(path)
		default:
			err = inspectStore(path, *keys)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "cacheinspect: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// inspectStore summarizes one shader store: records per stage and total
// payload bytes, optionally listing every key.
func inspectStore(path string, listKeys bool) error {
	var (
		perStage     [8]int
		payloadBytes int64
		badKeys      int
		lines        []string
	)

	res, err := diskcache.Read(path, shadercache.KeySchemaVersion, func(keyBytes, payload []byte) bool {
		key, err := shadercache.DecodeVariantKey(keyBytes)
		if err != nil {
			badKeys++
			return false
		}
		if int(key.Stage) < len(perStage) {
			perStage[key.Stage]++
		}
		payloadBytes += int64(len(payload))
		if listKeys {
			lines = append(lines, fmt.Sprintf("    %s hash=%016x flags=%08x tex=%d light=%d payload=%d",
				key.Stage, key.Hash, key.Flags, key.TexStages, key.LightCount, len(payload)))
		}
		return true
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", path)
	switch {
	case res.Reset:
		fmt.Printf("  incompatible header (other format or key schema)\n")
		return nil
	case res.Truncated:
		fmt.Printf("  CORRUPT TAIL: %d intact records precede it\n", res.Records)
	}
	fmt.Printf("  records=%d payload=%dB", res.Records, payloadBytes)
	for stage, n := range perStage {
		if n > 0 {
			fmt.Printf(" %s=%d", shadercache.Stage(stage), n)
		}
	}
	if badKeys > 0 {
		fmt.Printf(" undecodable=%d", badKeys)
	}
	fmt.Println()
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

// inspectUsage prints the persisted usage ranking, most used first.
func inspectUsage(path string) error {
	type ranked struct {
		key   shadercache.VariantKey
		count uint32
	}
	var entries []ranked

	res, err := diskcache.Read(path, shadercache.KeySchemaVersion, func(keyBytes, payload []byte) bool {
		key, err := shadercache.DecodeVariantKey(keyBytes)
		if err != nil || len(payload) != 4 {
			return false
		}
		entries = append(entries, ranked{key, binary.LittleEndian.Uint32(payload)})
		return true
	})
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key.Hash < entries[j].key.Hash
	})

	fmt.Printf("%s\n  usage entries=%d\n", path, res.Records)
	for _, e := range entries {
		fmt.Printf("    %6d  %s hash=%016x flags=%08x\n", e.count, e.key.Stage, e.key.Hash, e.key.Flags)
	}
	return nil
}

// inspectBinaryBlob prints the device-bound blob header so a mismatch with
// the current driver is easy to spot.
func inspectBinaryBlob(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", path)
	if len(blob) < shadercache.BinaryCacheHeaderSize {
		fmt.Printf("  too short for a blob header (%dB)\n", len(blob))
		return nil
	}
	fmt.Printf("  size=%dB length=%d version=%d vendor=%#08x device=%#08x uuid=%x\n",
		len(blob),
		binary.LittleEndian.Uint32(blob[0:4]),
		binary.LittleEndian.Uint32(blob[4:8]),
		binary.LittleEndian.Uint32(blob[8:12]),
		binary.LittleEndian.Uint32(blob[12:16]),
		blob[16:32])
	return nil
}
