package cluster

import "math"

// noiseLabel marks points that belong to no cluster.
const noiseLabel = -1

// dbscan assigns a density-based cluster label to every point using
// Euclidean distance. A point is a core point when at least minPoints
// points (itself included) lie within eps of it. Cluster ids are dense,
// assigned in discovery order over the input, so identical input yields
// identical labels.
func dbscan(points [][]float64, eps float64, minPoints int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, len(points))

	next := 0
	for i := range points {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPoints {
			continue
		}
		labels[i] = next
		expandCluster(points, labels, visited, neighbors, next, eps, minPoints)
		next++
	}
	return labels
}

// expandCluster grows a cluster from the seed neighborhood, absorbing the
// neighborhoods of every core point reached. The frontier is processed in
// order, keeping the assignment deterministic.
func expandCluster(points [][]float64, labels []int, visited []bool, frontier []int, id int, eps float64, minPoints int) {
	for cursor := 0; cursor < len(frontier); cursor++ {
		j := frontier[cursor]
		if labels[j] == noiseLabel {
			labels[j] = id
		}
		if visited[j] {
			continue
		}
		visited[j] = true
		neighbors := regionQuery(points, j, eps)
		if len(neighbors) >= minPoints {
			frontier = append(frontier, neighbors...)
		}
	}
}

// regionQuery returns the indices of all points within eps of point i, in
// index order, including i itself.
func regionQuery(points [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if euclidean(points[i], points[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
