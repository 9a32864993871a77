// Package clustering groups content items into topic clusters by embedding
// cosine similarity. It builds a similarity graph over items that carry
// embeddings and takes connected components as clusters; items without
// embeddings bypass clustering entirely and compete on keyword dedup alone.
package clustering

import (
	"math"

	"github.com/google/uuid"

	"citydigest/internal/core"
)

// DefaultThreshold is the pairwise cosine similarity at or above which two
// items join the same topic cluster.
const DefaultThreshold = 0.85

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Cluster partitions the items with embeddings into topic clusters at the
// given similarity threshold. Cluster membership is transitive: an item
// joins a cluster if it is similar to any member. The representative of a
// cluster is its highest-scored member, first-seen winning ties.
func Cluster(items []core.ScoredItem, threshold float64) []core.TopicCluster {
	var embedded []core.ScoredItem
	for _, it := range items {
		if len(it.Item.Embedding) > 0 {
			embedded = append(embedded, it)
		}
	}
	if len(embedded) == 0 {
		return nil
	}

	// Pairwise similarity graph as an adjacency list.
	graph := make(map[int][]int, len(embedded))
	for i := 0; i < len(embedded); i++ {
		for j := i + 1; j < len(embedded); j++ {
			if CosineSimilarity(embedded[i].Item.Embedding, embedded[j].Item.Embedding) >= threshold {
				graph[i] = append(graph[i], j)
				graph[j] = append(graph[j], i)
			}
		}
	}

	assignments := connectedComponents(graph, len(embedded))

	// Group member indices by component, preserving input order.
	components := make(map[int][]int)
	var order []int
	for i, comp := range assignments {
		if _, seen := components[comp]; !seen {
			order = append(order, comp)
		}
		components[comp] = append(components[comp], i)
	}

	clusters := make([]core.TopicCluster, 0, len(order))
	for _, comp := range order {
		members := components[comp]
		cluster := core.TopicCluster{
			ID:   uuid.NewString(),
			Size: len(members),
		}
		var total int
		rep := members[0]
		for _, idx := range members {
			cluster.ItemIDs = append(cluster.ItemIDs, embedded[idx].Item.ID)
			total += embedded[idx].Scores.Overall
			if embedded[idx].Scores.Overall > embedded[rep].Scores.Overall {
				rep = idx
			}
		}
		cluster.Representative = embedded[rep].Item.ID
		cluster.AverageScore = float64(total) / float64(len(members))
		clusters = append(clusters, cluster)
	}
	return clusters
}

// connectedComponents labels each node 0..n-1 with a component id via
// breadth-first traversal of the similarity graph.
func connectedComponents(graph map[int][]int, n int) []int {
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	comp := 0
	for start := 0; start < n; start++ {
		if assignments[start] != -1 {
			continue
		}
		queue := []int{start}
		assignments[start] = comp
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			for _, neighbor := range graph[node] {
				if assignments[neighbor] == -1 {
					assignments[neighbor] = comp
					queue = append(queue, neighbor)
				}
			}
		}
		comp++
	}
	return assignments
}

// Representatives returns the highest-scored member of each cluster in
// cluster order, resolved against the given items.
func Representatives(clusters []core.TopicCluster, items []core.ScoredItem) []core.ScoredItem {
	byID := make(map[string]core.ScoredItem, len(items))
	for _, it := range items {
		byID[it.Item.ID] = it
	}

	reps := make([]core.ScoredItem, 0, len(clusters))
	for _, c := range clusters {
		if rep, ok := byID[c.Representative]; ok {
			reps = append(reps, rep)
		}
	}
	return reps
}
