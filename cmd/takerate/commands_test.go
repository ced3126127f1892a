package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/app/repository"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/takerate"
)

type memoryRepo struct {
	entries []models.TakeRateEntry
	nextID  uint
}

func (m *memoryRepo) List(ctx context.Context) ([]models.TakeRateEntry, error) {
	return m.entries, nil
}

func (m *memoryRepo) Latest(ctx context.Context) (*models.TakeRateEntry, error) {
	var latest *models.TakeRateEntry
	for i := range m.entries {
		if latest == nil || m.entries[i].PeriodStart.After(latest.PeriodStart) {
			latest = &m.entries[i]
		}
	}
	return latest, nil
}

func (m *memoryRepo) GetByPeriodStart(ctx context.Context, periodStart string) (*models.TakeRateEntry, error) {
	for i := range m.entries {
		if m.entries[i].PeriodStart.Format("2006-01-02") == periodStart {
			return &m.entries[i], nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) Upsert(ctx context.Context, entry *models.TakeRateEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	for i := range m.entries {
		if m.entries[i].PeriodStart.Equal(entry.PeriodStart) {
			entry.ID = m.entries[i].ID
			m.entries[i] = *entry
			return nil
		}
	}
	m.nextID++
	entry.ID = m.nextID
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id uint) error {
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrTakeRateNotFound
}

func writeList(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))
	return path
}

func run(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testDeps(repo *memoryRepo, records []models.SubscriptionRecord) deps {
	return deps{
		records: func(ctx context.Context) ([]models.SubscriptionRecord, error) {
			return records, nil
		},
		repo: func() (repository.TakeRateRepository, error) {
			return repo, nil
		},
	}
}

func TestComputeCmd(t *testing.T) {
	signups := writeList(t, "signups.txt", "A@x.io", "c@x.io", "zzz@x.io")
	cohort := writeList(t, "cohort.txt", "# July", "a@x.io", "b@x.io", "c@x.io", "d@x.io", "")

	out, err := run(t, testDeps(&memoryRepo{}, nil), "compute", "--signups", signups, "--cohort", cohort)
	require.NoError(t, err)
	assert.Contains(t, out, "Cohort size: 4")
	assert.Contains(t, out, "Signups:     2")
	assert.Contains(t, out, "Take rate:   50.0%")
}

func TestComputeCmd_ReportsSkippedEntries(t *testing.T) {
	signups := writeList(t, "signups.txt", "a@x.io", "bob at x.io")
	cohort := writeList(t, "cohort.txt", "a@x.io", "b@x.io")

	out, err := run(t, testDeps(&memoryRepo{}, nil), "compute", "--signups", signups, "--cohort", cohort)
	require.NoError(t, err)
	assert.Contains(t, out, "Take rate:   50.0%")
	assert.Contains(t, out, "Skipped 1 entries without @: bob at x.io")
}

func TestComputeCmd_JSONAndSave(t *testing.T) {
	signups := writeList(t, "signups.txt", "a@x.io")
	cohort := writeList(t, "cohort.txt", "a@x.io", "b@x.io")
	repo := &memoryRepo{}

	out, err := run(t, testDeps(repo, nil), "compute", "--signups", signups, "--cohort", cohort,
		"--json", "--save", "--period", "August 2024", "--period-start", "2024-08-01")
	require.NoError(t, err)

	var res takerate.Result
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&res))
	assert.Equal(t, []string{"a@x.io"}, res.Matched)
	assert.Equal(t, 50.0, res.Rate)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "August 2024", repo.entries[0].Period)
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), repo.entries[0].PeriodStart)
	assert.Equal(t, 1, repo.entries[0].Signups)
	assert.Equal(t, 2, repo.entries[0].NewMembers)
}

func TestComputeCmd_SaveNeedsPeriod(t *testing.T) {
	signups := writeList(t, "signups.txt", "a@x.io")
	cohort := writeList(t, "cohort.txt", "a@x.io")

	_, err := run(t, testDeps(&memoryRepo{}, nil), "compute", "--signups", signups, "--cohort", cohort, "--save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--period")
}

func TestComputeCmd_MissingFile(t *testing.T) {
	cohort := writeList(t, "cohort.txt", "a@x.io")
	_, err := run(t, testDeps(&memoryRepo{}, nil), "compute", "--signups", "/does/not/exist", "--cohort", cohort)
	require.Error(t, err)
}

func TestBillingCmd(t *testing.T) {
	july := time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)
	records := []models.SubscriptionRecord{
		{ProductID: "prod_a", CustomerEmail: "a@x.io", CreatedAt: july},
		{ProductID: "prod_a", CustomerEmail: "b@x.io", CreatedAt: july.AddDate(0, 1, 0)},
		{ProductID: "prod_b", CustomerEmail: "c@x.io", CreatedAt: july},
	}
	cohort := writeList(t, "cohort.txt", "a@x.io", "b@x.io", "c@x.io", "d@x.io")

	out, err := run(t, testDeps(&memoryRepo{}, records), "billing", "--cohort", cohort,
		"--product", "prod_a", "--start", "2024-07-01", "--end", "2024-07-31")
	require.NoError(t, err)
	assert.Contains(t, out, "Signups:     1")
	assert.Contains(t, out, "Take rate:   25.0%")
}

func TestBillingCmd_Errors(t *testing.T) {
	cohort := writeList(t, "cohort.txt", "a@x.io")

	_, err := run(t, testDeps(&memoryRepo{}, nil), "billing", "--cohort", cohort,
		"--product", "prod_a", "--start", "2024-07-31", "--end", "2024-07-01")
	require.Error(t, err)

	d := testDeps(&memoryRepo{}, nil)
	d.records = func(ctx context.Context) ([]models.SubscriptionRecord, error) {
		return nil, errors.New("stripe down")
	}
	_, err = run(t, d, "billing", "--cohort", cohort, "--product", "prod_a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe down")
}

func TestRecordAndListCmd(t *testing.T) {
	repo := &memoryRepo{}
	d := testDeps(repo, nil)

	_, err := run(t, d, "record", "--period", "July 2024", "--period-start", "2024-07-01",
		"--signups", "34", "--new-members", "94")
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, 36.2, repo.entries[0].Rate)

	_, err = run(t, d, "record", "--period", "Bad", "--period-start", "2024-08-01",
		"--signups", "10", "--new-members", "5")
	require.Error(t, err)

	out, err := run(t, d, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "July 2024")
	assert.Contains(t, out, "2024-07-01")
	assert.Contains(t, out, "36.2%")
}

func TestListCmd_Empty(t *testing.T) {
	out, err := run(t, testDeps(&memoryRepo{}, nil), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No take rate entries recorded.")
}

func TestListCmd_RepoUnavailable(t *testing.T) {
	d := deps{repo: func() (repository.TakeRateRepository, error) {
		return nil, errors.New("database not configured")
	}}
	_, err := run(t, d, "list")
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, deps{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "takerate ")
}

func TestRecordCmd_ReplacesExistingMonth(t *testing.T) {
	repo := &memoryRepo{}
	d := testDeps(repo, nil)

	_, err := run(t, d, "record", "--period", "July 2024", "--period-start", "2024-07-01",
		"--signups", "30", "--new-members", "90")
	require.NoError(t, err)

	out, err := run(t, d, "record", "--period", "July 2024", "--period-start", "2024-07-01",
		"--signups", "34", "--new-members", "94")
	require.NoError(t, err)
	assert.Contains(t, out, "Replacing July 2024 (2024-07-01) at 33.3%")

	require.Len(t, repo.entries, 1)
	assert.Equal(t, 34, repo.entries[0].Signups)
}

func TestListCmd_Latest(t *testing.T) {
	repo := &memoryRepo{}
	d := testDeps(repo, nil)
	for _, args := range [][]string{
		{"--period", "June 2024", "--period-start", "2024-06-01", "--signups", "29", "--new-members", "70"},
		{"--period", "July 2024", "--period-start", "2024-07-01", "--signups", "34", "--new-members", "94"},
		{"--period", "May 2024", "--period-start", "2024-05-01", "--signups", "18", "--new-members", "49"},
	} {
		_, err := run(t, d, append([]string{"record"}, args...)...)
		require.NoError(t, err)
	}

	out, err := run(t, d, "list", "--latest")
	require.NoError(t, err)
	assert.Contains(t, out, "July 2024")
	assert.NotContains(t, out, "June 2024")
	assert.NotContains(t, out, "May 2024")

	out, err = run(t, testDeps(&memoryRepo{}, nil), "list", "--latest")
	require.NoError(t, err)
	assert.Contains(t, out, "No take rate entries recorded.")
}

func TestDeleteCmd(t *testing.T) {
	repo := &memoryRepo{}
	d := testDeps(repo, nil)
	_, err := run(t, d, "record", "--period", "July 2024", "--period-start", "2024-07-01",
		"--signups", "34", "--new-members", "94")
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	out, err := run(t, d, "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted entry 1")
	assert.Empty(t, repo.entries)

	_, err = run(t, d, "delete", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrTakeRateNotFound)

	_, err = run(t, d, "delete", "abc")
	require.Error(t, err)
	_, err = run(t, d, "delete")
	require.Error(t, err)
}
