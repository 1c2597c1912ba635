package fixed

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum.DivInt(len(points))
}

func StdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}

	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}

	return sum.DivInt(len(points)).Sqrt()
}

// MaxDrawdown returns the largest peak-to-trough decline of the series, as a non-negative amount.
func MaxDrawdown(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}

	peak := points[0]
	drawdown := Zero
	for _, point := range points[1:] {
		if point.Gt(peak) {
			peak = point
			continue
		}
		drawdown = Max(drawdown, peak.Sub(point))
	}
	return drawdown
}
