package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/journeymidnight/sliver/blob"
	"github.com/journeymidnight/sliver/quilt"
	"github.com/journeymidnight/sliver/utils"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	return newApp().RunContext(context.Background(), append([]string{"sliver-tool"}, args...))
}

func TestValidateConf(t *testing.T) {
	good := Config{NShards: 10, EncodingType: "RS2", Dir: "x"}
	require.NoError(t, validateConf(&good))
	require.Equal(t, []string{"stderr"}, good.LogOutput)

	for _, bad := range []Config{
		{NShards: 0, EncodingType: "RS2", Dir: "x"},
		{NShards: 70000, EncodingType: "RS2", Dir: "x"},
		{NShards: 10, EncodingType: "RS9", Dir: "x"},
		{NShards: 10, EncodingType: "RS2", Dir: ""},
		{NShards: 10, EncodingType: "RS2", Dir: "x", Workers: -1},
	} {
		bad := bad
		require.Error(t, validateConf(&bad))
	}
}

func TestEncodeDecodeCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.bin")
	data := make([]byte, 10000)
	utils.SetRandStringBytes(data)
	require.NoError(t, os.WriteFile(input, data, 0644))

	store := filepath.Join(dir, "store")
	require.NoError(t, run(t, "--dir", store, "--nShards", "7", "--compress", "encode", input))

	enc, err := blob.NewEncoder(7)
	require.NoError(t, err)
	summary, err := enc.ComputeMetadata(data)
	require.NoError(t, err)
	id := summary.BlobID.String()

	for _, axis := range []string{"primary", "secondary"} {
		output := filepath.Join(dir, axis+".out")
		require.NoError(t, run(t, "--dir", store, "decode", "-o", output, "--axis", axis, "--drop", "0,1", "--verify", id))
		got, err := os.ReadFile(output)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}

	// 7 shards, primary threshold 3: dropping 5 leaves too few
	err = run(t, "--dir", store, "decode", "-o", filepath.Join(dir, "x"), "--drop", "0,1,2,3,4", id)
	require.Error(t, err)

	require.NoError(t, run(t, "--dir", store, "ls"))
	require.NoError(t, run(t, "--dir", store, "rm", id))
	require.Error(t, run(t, "--dir", store, "rm", id))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sliver.toml")
	require.NoError(t, os.WriteFile(path, []byte("nShards = 4\ndir = \""+filepath.ToSlash(dir)+"\"\nworkers = 2\n"), 0644))

	require.NoError(t, run(t, "--config", path, "info", "--size", "1000"))
	require.Equal(t, 4, config.NShards)
	require.Equal(t, 2, config.Workers)
	require.Equal(t, dir, filepath.FromSlash(config.Dir))

	// explicit flags win over the file
	require.NoError(t, run(t, "--config", path, "--nShards", "13", "info"))
	require.Equal(t, 13, config.NShards)
}

func TestBenchCommand(t *testing.T) {
	require.NoError(t, run(t, "--dir", t.TempDir(), "--nShards", "10", "bench", "-t", "2", "-n", "4", "-s", "4096", "--decode"))
	require.Error(t, run(t, "--dir", t.TempDir(), "bench", "-t", "0"))
}

func TestInfoRejectsBadShards(t *testing.T) {
	require.Error(t, run(t, "--dir", t.TempDir(), "info", "0"))
	require.Error(t, run(t, "--dir", t.TempDir(), "--nShards", "0", "info"))
}

func TestQuiltCommands(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"one.txt": make([]byte, 500),
		"two.bin": make([]byte, 3000),
	}
	var files []string
	for name, data := range contents {
		utils.SetRandStringBytes(data)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0644))
		files = append(files, path)
	}
	store := filepath.Join(dir, "store")
	args := append([]string{"--dir", store, "--nShards", "10", "quilt", "--tag", "kind=test"}, files...)
	require.NoError(t, run(t, args...))

	// the same quilt again, to learn the patch ids the command printed
	tags := map[string]string{"kind": "test"}
	var blobs []quilt.Blob
	for name, data := range contents {
		blobs = append(blobs, quilt.Blob{Identifier: name, Contents: data, Tags: tags})
	}
	enc, err := blob.NewEncoder(10)
	require.NoError(t, err)
	q, err := quilt.Encode(enc.BlobEncoder(), blobs)
	require.NoError(t, err)
	summary, err := enc.ComputeMetadata(q.Data)
	require.NoError(t, err)

	ids := q.Index.PatchIDs(summary.BlobID)
	require.Len(t, ids, 2)
	for i, id := range ids {
		output := filepath.Join(dir, fmt.Sprintf("patch-%d.out", i))
		require.NoError(t, run(t, "--dir", store, "patch", "-o", output, id.String()))
		got, err := os.ReadFile(output)
		require.NoError(t, err)
		require.Equal(t, contents[q.Index.Patches[i].Identifier], got)
	}

	// a missing column forces a full decode of the quilt
	id := ids[1]
	output := filepath.Join(dir, "fallback.out")
	require.NoError(t, run(t, "--dir", store, "patch", "-o", output, "--drop", fmt.Sprint(id.StartIndex), id.String()))
	got, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, contents[q.Index.Patches[1].Identifier], got)

	require.NoError(t, run(t, "--dir", store, "shards", summary.BlobID.String()))
	require.Error(t, run(t, "--dir", store, "patch", "-o", output, summary.BlobID.String()))
}
