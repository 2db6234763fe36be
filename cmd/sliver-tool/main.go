package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/journeymidnight/sliver/blob"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/sliverstore"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func openStore() (*sliverstore.Store, error) {
	return sliverstore.Open(config.Dir, sliverstore.Options{
		Compress: config.Compress,
		Workers:  config.Workers,
	})
}

func encode(c *cli.Context) error {
	fileName := c.Args().First()
	if len(fileName) == 0 {
		return errors.New("no file")
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		return errors.Errorf("read file %s: err: %s", fileName, err.Error())
	}
	enc, err := blob.NewEncoderWithType(uint16(config.NShards), config.encodingType())
	if err != nil {
		return err
	}
	encoded, err := enc.Encode(data)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if _, err = store.Put(c.Context, encoded.Metadata, encoded.Pairs, filepath.Base(fileName)); err != nil {
		return err
	}
	fmt.Printf("blob id   : %s\n", encoded.BlobID)
	fmt.Printf("root hash : %s\n", encoded.RootHash)
	fmt.Printf("stored in : %s\n", store.BlobDir(encoded.BlobID))
	return nil
}

func decode(c *cli.Context) error {
	id, err := metadata.ParseBlobID(c.Args().First())
	if err != nil {
		return err
	}
	output := c.String("output")
	if len(output) == 0 {
		return errors.New("no output file")
	}
	axis, err := encoding.ParseAxis(c.String("axis"))
	if err != nil {
		return err
	}
	drop, err := utils.ParseIndexList(c.String("drop"))
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	manifest, md, err := store.Get(id)
	if err != nil {
		return err
	}
	slivers, err := store.LoadSlivers(c.Context, md, axis, drop)
	if err != nil {
		return err
	}
	enc, err := blob.NewEncoderWithType(manifest.NShards, md.Metadata().EncodingType())
	if err != nil {
		return err
	}

	canonical := make([][]byte, len(slivers))
	for i := range slivers {
		canonical[i] = slivers[i].CanonicalBytes()
	}
	length := md.Metadata().UnencodedLength()
	var data []byte
	if c.Bool("verify") {
		data, err = enc.DecodeAndVerify(id, length, canonical)
	} else {
		data, err = enc.Decode(id, length, canonical)
	}
	if err != nil {
		return err
	}
	if err = os.WriteFile(output, data, 0644); err != nil {
		return errors.WithStack(err)
	}
	fmt.Printf("decoded %d bytes from %d %s slivers into %s\n", len(data), len(slivers), axis, output)
	return nil
}

func computeMetadata(c *cli.Context) error {
	fileName := c.Args().First()
	if len(fileName) == 0 {
		return errors.New("no file")
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		return errors.Errorf("read file %s: err: %s", fileName, err.Error())
	}
	enc, err := blob.NewEncoderWithType(uint16(config.NShards), config.encodingType())
	if err != nil {
		return err
	}
	summary, err := enc.ComputeMetadata(data)
	if err != nil {
		return err
	}
	fmt.Printf("blob id          : %s\n", summary.BlobID)
	fmt.Printf("root hash        : %s\n", summary.RootHash)
	fmt.Printf("unencoded length : %d\n", summary.UnencodedLength)
	fmt.Printf("encoding type    : %s\n", summary.EncodingType)
	return nil
}

func info(c *cli.Context) error {
	n := config.NShards
	if c.Args().Len() > 0 {
		if _, err := fmt.Sscanf(c.Args().First(), "%d", &n); err != nil {
			return errors.Errorf("bad shard count %q", c.Args().First())
		}
	}
	if n <= 0 || n > 1<<16-1 {
		return errors.Errorf("shard count must be in [1, 65535], got %d", n)
	}
	enc, err := encoding.GetEncoder(uint16(n), config.encodingType())
	if err != nil {
		return err
	}
	cfg := enc.Config()
	fmt.Printf("shards              : %d\n", cfg.NShards())
	fmt.Printf("max faulty (f)      : %d\n", cfg.MaxFaulty())
	fmt.Printf("primary threshold   : %d\n", enc.SourceSymbols(encoding.Primary))
	fmt.Printf("secondary threshold : %d\n", enc.SourceSymbols(encoding.Secondary))
	fmt.Printf("max blob size       : %d\n", enc.MaxBlobSize())
	if size := c.Uint64("size"); size > 0 {
		symbolSize, err := enc.SymbolSize(size)
		if err != nil {
			return err
		}
		total, err := enc.EncodedBlobLength(size)
		if err != nil {
			return err
		}
		fmt.Printf("symbol size         : %d\n", symbolSize)
		fmt.Printf("encoded length      : %d (%d storage units)\n", total, encoding.StorageUnits(total))
	}
	return nil
}

func ls(c *cli.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	ids, err := store.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		manifest, _, err := store.Get(id)
		if err != nil {
			xlog.Logger.Warnf("blob %s: %v", id, err)
			continue
		}
		fmt.Printf("%s\t%d\t%d\t%s\n", id, manifest.UnencodedLength, manifest.NShards, manifest.Name)
	}
	return nil
}

func rm(c *cli.Context) error {
	id, err := metadata.ParseBlobID(c.Args().First())
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.Delete(id)
}

// shards prints which storage shard holds each sliver pair of a blob.
func shards(c *cli.Context) error {
	id, err := metadata.ParseBlobID(c.Args().First())
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	manifest, _, err := store.Get(id)
	if err != nil {
		return err
	}
	cfg, err := encoding.NewEncodingConfig(manifest.NShards)
	if err != nil {
		return err
	}
	fmt.Printf("pair\tshard\n")
	for pair := uint16(0); pair < manifest.NShards; pair++ {
		shard, err := cfg.ShardIndex(pair, id[:])
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%d\n", pair, shard)
	}
	return nil
}

func dumpConfig(c *cli.Context) error {
	return toml.NewEncoder(os.Stdout).Encode(config)
}

func newApp() *cli.App {
	flags := configFlags()
	app := cli.NewApp()
	app.Name = "sliver-tool"
	app.Usage = "encode files into slivers and back"
	app.Flags = flags
	app.Before = loadConfig(flags)
	app.Commands = []*cli.Command{
		{
			Name:   "encode",
			Usage:  "encode <FILE>",
			Action: encode,
		},
		{
			Name:  "decode",
			Usage: "decode --output <FILE> [--axis primary|secondary] [--drop 0,3,5] [--verify] <BLOB ID>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}},
				&cli.StringFlag{Name: "axis", Value: "primary"},
				&cli.StringFlag{Name: "drop", Usage: "sliver indexes to leave out"},
				&cli.BoolFlag{Name: "verify", Usage: "re-encode and check the blob id"},
			},
			Action: decode,
		},
		{
			Name:   "metadata",
			Usage:  "metadata <FILE>",
			Action: computeMetadata,
		},
		{
			Name:  "info",
			Usage: "info [--size <bytes>] [SHARDS]",
			Flags: []cli.Flag{
				&cli.Uint64Flag{Name: "size"},
			},
			Action: info,
		},
		{
			Name:   "ls",
			Usage:  "ls",
			Action: ls,
		},
		{
			Name:   "rm",
			Usage:  "rm <BLOB ID>",
			Action: rm,
		},
		{
			Name:   "shards",
			Usage:  "shards <BLOB ID>",
			Action: shards,
		},
		{
			Name:  "quilt",
			Usage: "quilt [--tag key=value] <FILE>...",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "tag", Usage: "tag every patch with key=value"},
			},
			Action: encodeQuilt,
		},
		{
			Name:  "patch",
			Usage: "patch --output <FILE> [--drop 0,3,5] <PATCH ID>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}},
				&cli.StringFlag{Name: "drop", Usage: "sliver indexes to leave out"},
			},
			Action: readPatch,
		},
		{
			Name:  "bench",
			Usage: "bench --thread <num> --count <num> --size <bytes>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "thread", Value: 4, Aliases: []string{"t"}},
				&cli.IntFlag{Name: "count", Value: 100, Aliases: []string{"n"}},
				&cli.IntFlag{Name: "size", Value: 1 << 20, Aliases: []string{"s"}},
				&cli.BoolFlag{Name: "decode", Usage: "also decode every blob"},
				&cli.StringFlag{Name: "histogram", Usage: "write the encode latency distribution as json"},
			},
			Action: bench,
		},
		{
			Name:   "config",
			Usage:  "print the effective config as toml",
			Action: dumpConfig,
		},
	}
	return app
}

func main() {
	app := newApp()
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
