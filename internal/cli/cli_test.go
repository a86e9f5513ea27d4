package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDump = `<?xml version="1.0" encoding="ISO-8859-1"?>
<dblp>
<inproceedings key="conf/stoc/AliceB20">
<author>Alice</author>
<author>Bob</author>
<title>Lower Bounds.</title>
<year>2020</year>
<booktitle>STOC</booktitle>
</inproceedings>
<inproceedings key="conf/nowhere/X20">
<author>Alice</author>
<title>Elsewhere.</title>
<year>2020</year>
<booktitle>Nowhere Workshop</booktitle>
</inproceedings>
</dblp>
`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCountMergeSummary(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	cfg := write("config.yaml", "output:\n  precision: 3\n")
	dump := write("dump.xml", testDump)
	tracked := write("tracked.csv", "name\nAlice\nCarol\n")

	out := filepath.Join(dir, "ledger.csv")
	shard := filepath.Join(dir, "run.cbor")
	areas := filepath.Join(dir, "areas.csv")

	require.NoError(t, execute(t, "count", dump,
		"--config", cfg,
		"--tracked", tracked,
		"-o", out,
		"--shard-out", shard,
		"--area-out", areas,
		"--digest"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"name,area,year,first_author_count,all_publication_count,weighted_publication_count\n"+
			"Alice,stoc,2020,0.500,1,0.500\n",
		string(data))
	assert.FileExists(t, out+".b3")

	data, err = os.ReadFile(areas)
	require.NoError(t, err)
	assert.Equal(t, "Area,Year,PublicationCount\nstoc,2020,1\n", string(data))

	merged := filepath.Join(dir, "merged.csv")
	require.NoError(t, execute(t, "merge", shard, shard, "--config", cfg, "-o", merged))
	data, err = os.ReadFile(merged)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Alice,stoc,2020,1.000,2,1.000\n")

	summary := filepath.Join(dir, "summary.csv")
	require.NoError(t, execute(t, "summary", out, "--config", cfg, "--tracked", tracked, "-o", summary))
	data, err = os.ReadFile(summary)
	require.NoError(t, err)
	assert.Equal(t,
		"name,first_author_points,all_author_points,weighted_points,num_fields,start_year,dominant_parent_area\n"+
			"Alice,0.500,1.000,0.500,1,2020,Theory\n"+
			"Carol,0.000,0.000,0.000,0,,\n",
		string(data))
}

func TestCount_InvalidConfigWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("filter:\n  start_year: 2020\n  end_year: 2010\n"), 0o644))
	out := filepath.Join(dir, "ledger.csv")

	err := execute(t, "count", filepath.Join(dir, "missing.xml"), "--config", cfg, "-o", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.NoFileExists(t, out)
}
