package utils

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CeilDiv returns ceil(a/b) for b > 0.
func CeilDiv(a, b uint64) uint64 {
	AssertTrue(b > 0)
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}

// AssertTrue asserts that b is true. Otherwise, it would log fatal.
func AssertTrue(b bool) {
	if !b {
		panic(fmt.Sprintf("%+v", errors.Errorf("Assert failed")))
	}
}

func SetRandStringBytes(data []byte) {
	letterBytes := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for i := range data {
		data[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
}

func HumanReadableThroughput(t float64) string {
	if t < 0 || t < 1e-9 { //if t <=0 , return ""
		return ""
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	power := int(math.Log10(t) / 3)
	if power >= len(units) {
		return ""
	}

	return fmt.Sprintf("%.2f%s/sec", t/math.Pow(1000, float64(power)), units[power])
}

func SplitAndTrim(s string, sep string) []string {
	parts := strings.Split(s, sep)
	for i := 0; i < len(parts); i++ {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseIndexList parses "1,4, 7" into sorted-as-given uint16 values. An empty
// string yields nil.
func ParseIndexList(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ret []uint16
	for _, part := range SplitAndTrim(s, ",") {
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "bad index %q", part)
		}
		ret = append(ret, uint16(v))
	}
	return ret, nil
}
