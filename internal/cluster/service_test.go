package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/model"
)

type stubBudget struct {
	payees []model.Payee
	calls  int
}

func (s *stubBudget) GetTransactions(_ context.Context, _ string) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubBudget) GetCategories(_ context.Context, _ string) ([]model.Category, error) {
	return nil, nil
}

func (s *stubBudget) GetPayees(_ context.Context, _ string) ([]model.Payee, error) {
	s.calls++
	return s.payees, nil
}

func (s *stubBudget) GetCategorizedPayees(_ context.Context, _ string) ([]model.CategorizedPayee, error) {
	return nil, nil
}

type memClusterStore struct {
	clusters  map[string][]model.PayeeMergeCluster
	snapshots map[string][]model.Payee
	hashes    map[string]string
	saveCalls int
}

func newMemClusterStore() *memClusterStore {
	return &memClusterStore{
		clusters:  make(map[string][]model.PayeeMergeCluster),
		snapshots: make(map[string][]model.Payee),
		hashes:    make(map[string]string),
	}
}

func (m *memClusterStore) SaveClusters(_ context.Context, budgetID, listHash string, payees []model.Payee, clusters []model.PayeeMergeCluster) error {
	m.saveCalls++
	m.clusters[budgetID] = clusters
	m.snapshots[budgetID] = payees
	m.hashes[budgetID] = listHash
	return nil
}

func (m *memClusterStore) GetClusters(_ context.Context, budgetID string) ([]model.PayeeMergeCluster, string, error) {
	return m.clusters[budgetID], m.hashes[budgetID], nil
}

func (m *memClusterStore) GetClusterSnapshot(_ context.Context, budgetID string) ([]model.Payee, string, error) {
	return m.snapshots[budgetID], m.hashes[budgetID], nil
}

func (m *memClusterStore) InvalidateClusters(_ context.Context, budgetID string) error {
	delete(m.clusters, budgetID)
	delete(m.snapshots, budgetID)
	delete(m.hashes, budgetID)
	return nil
}

func newTestService(budget *stubBudget, store *memClusterStore) *Service {
	return NewService(NewEngine(testLogger()), nil, budget, store, testLogger())
}

func TestServiceBuildClustersCachesByListHash(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
		{ID: "p3", Name: "Netflix"},
	}}
	store := newMemClusterStore()
	svc := newTestService(budget, store)

	first, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, store.saveCalls)

	second, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, clusterIDs(first), clusterIDs(second))
	assert.Equal(t, 1, store.saveCalls, "unchanged payee list should not recompute")
}

func TestServiceBuildClustersForceRebuild(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
	}}
	store := newMemClusterStore()
	svc := newTestService(budget, store)

	_, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)
	_, err = svc.BuildClusters(context.Background(), "budget-1", BuildOptions{ForceRebuild: true})
	require.NoError(t, err)

	assert.Equal(t, 2, store.saveCalls)
}

func TestServiceBuildClustersOracleNotConfigured(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{{ID: "p1", Name: "Starbucks"}}}
	svc := newTestService(budget, newMemClusterStore())

	_, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{UseOracle: true})

	assert.ErrorIs(t, err, common.ErrOracleNotConfigured)
	assert.Equal(t, 0, budget.calls, "should fail before fetching payees")
}

func TestServiceBuildClustersNoPayees(t *testing.T) {
	svc := newTestService(&stubBudget{}, newMemClusterStore())

	_, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})

	assert.ErrorIs(t, err, common.ErrNoPayees)
}

func TestServiceGetCachedClustersFresh(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
	}}
	store := newMemClusterStore()
	svc := newTestService(budget, store)

	built, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)

	cached, status, err := svc.GetCachedClusters(context.Background(), "budget-1")
	require.NoError(t, err)
	assert.False(t, status.Stale)
	assert.Empty(t, status.StalePayeeIDs)
	assert.Equal(t, clusterIDs(built), clusterIDs(cached))
}

func TestServiceGetCachedClustersStale(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
		{ID: "p3", Name: "Netflix"},
	}}
	store := newMemClusterStore()
	svc := newTestService(budget, store)

	_, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)

	// Rename one payee, drop another, add a new one.
	budget.payees = []model.Payee{
		{ID: "p1", Name: "Starbucks Coffee"},
		{ID: "p3", Name: "Netflix"},
		{ID: "p4", Name: "Spotify"},
	}

	_, status, err := svc.GetCachedClusters(context.Background(), "budget-1")
	require.NoError(t, err)
	assert.True(t, status.Stale)
	assert.Equal(t, []string{"p1", "p2", "p4"}, status.StalePayeeIDs)
}

func TestServiceGetCachedClustersEmptyStore(t *testing.T) {
	svc := newTestService(&stubBudget{}, newMemClusterStore())

	clusters, status, err := svc.GetCachedClusters(context.Background(), "budget-1")

	require.NoError(t, err)
	assert.Nil(t, clusters)
	assert.True(t, status.Stale)
}

func TestServiceInvalidate(t *testing.T) {
	budget := &stubBudget{payees: []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
	}}
	store := newMemClusterStore()
	svc := newTestService(budget, store)

	_, err := svc.BuildClusters(context.Background(), "budget-1", BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background(), "budget-1"))

	_, status, err := svc.GetCachedClusters(context.Background(), "budget-1")
	require.NoError(t, err)
	assert.True(t, status.Stale)
}
