package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/journeymidnight/sliver/blob"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/utils"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func bench(c *cli.Context) error {
	threadNum := c.Int("thread")
	count := c.Int("count")
	size := c.Int("size")
	withDecode := c.Bool("decode")
	if threadNum <= 0 || count <= 0 || size < 0 {
		return errors.Errorf("thread and count must be positive, size not negative")
	}

	enc, err := blob.NewEncoderWithType(uint16(config.NShards), config.encodingType())
	if err != nil {
		return err
	}
	k := int(enc.BlobEncoder().SourceSymbols(encoding.Primary))

	//prepare data
	data := make([]byte, size)
	utils.SetRandStringBytes(data)

	//latency in microseconds, up to 100s
	encodeLatency := utils.NewLantencyStatus(1, 100*1000*1000)
	decodeLatency := utils.NewLantencyStatus(1, 100*1000*1000)
	var done uint64

	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(threadNum)
	start := time.Now()
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := time.Now()
			encoded, err := enc.Encode(data)
			if err != nil {
				return err
			}
			encodeLatency.Record(time.Since(t).Microseconds())

			if withDecode {
				canonical := make([][]byte, 0, k)
				for j := len(encoded.Pairs) - k; j < len(encoded.Pairs); j++ {
					canonical = append(canonical, encoded.Pairs[j].Primary.CanonicalBytes())
				}
				t = time.Now()
				if _, err = enc.Decode(encoded.BlobID, uint64(size), canonical); err != nil {
					return err
				}
				decodeLatency.Record(time.Since(t).Microseconds())
			}
			atomic.AddUint64(&done, 1)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	printLatency("encode", encodeLatency)
	if withDecode {
		printLatency(fmt.Sprintf("decode from last %d primary slivers", k), decodeLatency)
	}
	if out := c.String("histogram"); len(out) > 0 {
		f, err := os.OpenFile(out, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
		if err != nil {
			return errors.WithStack(err)
		}
		defer f.Close()
		encodeLatency.Histgram(nil, f)
	}
	printSummary(elapsed, atomic.LoadUint64(&done), atomic.LoadUint64(&done)*uint64(size), threadNum, size)
	return nil
}

var percentiles = []float64{50, 90, 99, 99.9, 100}

func printLatency(name string, ls *utils.HistogramStatus) {
	values := ls.Histgram(percentiles, nil)
	fmt.Printf("%s latency over %d samples\n", name, ls.Count())
	for i, p := range percentiles {
		fmt.Printf("  p%-5v %8dus\n", p, values[i])
	}
}

func printSummary(elapsed time.Duration, totalCount uint64, totalSize uint64, threadNum int, size int) {
	if elapsed.Seconds() < 1e-9 {
		return
	}
	fmt.Printf("\nSummary\n")
	fmt.Printf("Threads :%d\n", threadNum)
	fmt.Printf("Size    :%d\n", size)
	fmt.Printf("Time taken for tests :%v seconds\n", elapsed.Seconds())
	fmt.Printf("Complete encodes :%d\n", totalCount)
	fmt.Printf("Total encoded :%d bytes\n", totalSize)
	fmt.Printf("Encodes per second :%.2f [#/sec]\n", float64(totalCount)/elapsed.Seconds())
	t := float64(totalSize) / elapsed.Seconds()
	fmt.Printf("Throughput per second :%s\n", utils.HumanReadableThroughput(t))
}
