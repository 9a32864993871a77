package clustering

import (
	"math"
	"testing"

	"citydigest/internal/core"
)

func embeddedItem(id string, overall int, embedding []float64) core.ScoredItem {
	return core.ScoredItem{
		Item:   core.ContentItem{ID: id, Embedding: embedding},
		Scores: core.ContentScores{Overall: overall},
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"empty", nil, nil, 0},
		{"mismatched lengths", []float64{1, 0}, []float64{1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCluster_GroupsSimilarItems(t *testing.T) {
	// a1 and a2 point the same way; b is orthogonal to both.
	items := []core.ScoredItem{
		embeddedItem("a1", 60, []float64{1, 0, 0}),
		embeddedItem("a2", 90, []float64{0.99, 0.01, 0}),
		embeddedItem("b", 70, []float64{0, 1, 0}),
	}

	clusters := Cluster(items, 0.85)

	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	if clusters[0].Size != 2 {
		t.Errorf("first cluster size = %d, want 2", clusters[0].Size)
	}
	if clusters[0].Representative != "a2" {
		t.Errorf("representative = %s, want highest-scored a2", clusters[0].Representative)
	}
	if clusters[0].AverageScore != 75 {
		t.Errorf("average score = %v, want 75", clusters[0].AverageScore)
	}
	if clusters[1].Representative != "b" || clusters[1].Size != 1 {
		t.Errorf("singleton cluster wrong: %+v", clusters[1])
	}
}

func TestCluster_TransitiveMembership(t *testing.T) {
	// a~b and b~c but a and c alone would not meet the threshold; the
	// connected component still joins all three.
	items := []core.ScoredItem{
		embeddedItem("a", 50, []float64{1, 0}),
		embeddedItem("b", 50, []float64{0.93, 0.368}),
		embeddedItem("c", 50, []float64{0.73, 0.683}),
	}

	clusters := Cluster(items, 0.92)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 transitive cluster", len(clusters))
	}
	if clusters[0].Size != 3 {
		t.Errorf("cluster size = %d, want 3", clusters[0].Size)
	}
}

func TestCluster_SkipsItemsWithoutEmbeddings(t *testing.T) {
	items := []core.ScoredItem{
		embeddedItem("with", 50, []float64{1, 0}),
		embeddedItem("without", 80, nil),
	}

	clusters := Cluster(items, 0.85)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	for _, id := range clusters[0].ItemIDs {
		if id == "without" {
			t.Error("item without embedding must bypass clustering")
		}
	}
}

func TestCluster_Empty(t *testing.T) {
	if got := Cluster(nil, 0.85); got != nil {
		t.Errorf("Cluster(nil) = %v, want nil", got)
	}
}

func TestRepresentatives(t *testing.T) {
	items := []core.ScoredItem{
		embeddedItem("a1", 60, []float64{1, 0}),
		embeddedItem("a2", 90, []float64{1, 0.001}),
		embeddedItem("b", 70, []float64{0, 1}),
	}

	clusters := Cluster(items, 0.85)
	reps := Representatives(clusters, items)

	if len(reps) != 2 {
		t.Fatalf("got %d representatives, want 2", len(reps))
	}
	if reps[0].Item.ID != "a2" || reps[1].Item.ID != "b" {
		t.Errorf("unexpected representatives: %s, %s", reps[0].Item.ID, reps[1].Item.ID)
	}
}

func TestCluster_TieKeepsFirstSeen(t *testing.T) {
	items := []core.ScoredItem{
		embeddedItem("first", 70, []float64{1, 0}),
		embeddedItem("second", 70, []float64{1, 0.001}),
	}

	clusters := Cluster(items, 0.85)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	if clusters[0].Representative != "first" {
		t.Errorf("tie should keep first-seen, got %s", clusters[0].Representative)
	}
}
