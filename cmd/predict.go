package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/spf13/cobra"

	"car-price-estimator/inference"
	"car-price-estimator/models"
	"car-price-estimator/server"
)

var predictReq server.EstimateRequest

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate the price of one car",
	Example: `  car-price-estimator predict --make Toyota --model Corolla --year 2012 \
    --fuel Gasolina --shift Manual --power 110 --cylinders 1.6 --label C \
    --kms 100000 --zip 28800`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := binding.Validator.ValidateStruct(&predictReq); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}

		est, err := inference.Load(cfg.PreprocessorPath, cfg.ModelPath)
		if err != nil {
			return err
		}
		price, err := est.Estimate(predictReq.Listing())
		if err != nil {
			return err
		}
		fmt.Printf("El precio estimado de tu coche es: %s\n", inference.FormatPrice(price))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	f := predictCmd.Flags()
	f.StringVar(&predictReq.Make, "make", "", "car make, e.g. Toyota")
	f.StringVar(&predictReq.Model, "model", "", "car model, e.g. Corolla")
	f.IntVar(&predictReq.Year, "year", 2012, "year of manufacture (1960-2025)")
	f.StringVar(&predictReq.Fuel, "fuel", models.FuelGasoline, "fuel: Gasolina, Diésel, Otros or Eléctrico")
	f.StringVar(&predictReq.Shift, "shift", models.ShiftManual, "transmission: Manual or Automatic")
	f.Float64Var(&predictReq.Power, "power", 110, "power in CV (45-500)")
	f.Float64Var(&predictReq.CylindersCapacity, "cylinders", 1.6, "displacement in litres (0-6.8)")
	f.StringVar(&predictReq.EmissionLabel, "label", models.LabelC, "emission label: A, B, C or ZERO")
	f.Float64Var(&predictReq.Kms, "kms", 100000, "odometer reading (0-2000000)")
	f.IntVar(&predictReq.DealerZipCode, "zip", 28800, "dealer postal code (0-60000)")
	_ = predictCmd.MarkFlagRequired("make")
	_ = predictCmd.MarkFlagRequired("model")
}
