package main

import "car-price-estimator/cmd"

func main() {
	cmd.Execute()
}
