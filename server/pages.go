package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"car-price-estimator/models"
)

const pageTitle = "¿Cuál es el precio de tu coche?"

// Makes offered by the form, in the order the dataset lists them.
var Makes = []string{
	"Peugeot", "Dodge", "Suzuki", "Volkswagen", "Citroen", "Mercedes-Benz", "Renault", "Ferrari",
	"Nissan", "Maserati", "Honda", "Hyundai", "Audi", "Ford", "BMW", "Lancia", "Infiniti", "Fiat",
	"Jeep", "Opel", "Mitsubishi", "Subaru", "Land Rover", "Dacia", "Toyota", "Volvo", "Lexus", "KIA",
	"Mazda", "Jaguar", "Skoda", "SEAT", "Alfa Romeo", "Cadillac", "Chevrolet", "SsangYong",
	"Aston Martin", "Porsche", "Abarth", "MINI", "CUPRA", "Bentley", "Lotus", "Tesla", "DS", "Isuzu",
	"Tata", "KTM", "Lamborghini", "Saab", "MG", "Chrysler", "Daewoo", "Iveco", "Corvette", "Galloper",
	"McLaren", "Mahindra", "Hummer", "Alpine", "Santana", "Rover", "Daihatsu", "Renault Trucks",
	"Lada", "VAZ",
}

var (
	fuels  = []string{models.FuelGasoline, models.FuelDiesel, models.FuelOther, models.FuelElectric}
	shifts = []string{models.ShiftManual, models.ShiftAutomatic}
	labels = []string{models.LabelA, models.LabelB, models.LabelC, models.LabelZero}
)

func defaultRequest() EstimateRequest {
	return EstimateRequest{
		Make:              Makes[0],
		Year:              2012,
		Fuel:              models.FuelGasoline,
		Shift:             models.ShiftManual,
		Power:             110,
		CylindersCapacity: 1.6,
		EmissionLabel:     models.LabelC,
		Kms:               100000,
		DealerZipCode:     28800,
	}
}

func render(c *gin.Context, code int, page g.Node) {
	c.Status(code)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = page.Render(c.Writer)
}

func layout(body ...g.Node) g.Node {
	return html.Doctype(
		html.HTML(
			html.Lang("es"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(g.Text(pageTitle)),
				html.StyleEl(g.Raw(`
					body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; padding: 0 1rem; }
					label { display: block; margin-top: .75rem; font-weight: 600; }
					input, select { width: 100%; padding: .4rem; box-sizing: border-box; }
					button { margin-top: 1.25rem; padding: .6rem 1.2rem; }
					.error { color: #b00020; }
					.result { font-size: 1.25rem; color: #1b5e20; }
				`)),
			),
			html.Body(
				html.Main(
					html.H1(g.Text(pageTitle)),
					g.Group(body),
				),
			),
		),
	)
}

func formPage(req EstimateRequest, errMsg string) g.Node {
	return layout(
		g.If(errMsg != "", html.P(html.Class("error"), g.Text(errMsg))),
		estimateForm(req),
	)
}

func resultPage(req EstimateRequest, price string) g.Node {
	return layout(
		html.P(html.Class("result"), g.Text("El precio estimado de tu coche es: "+price)),
		estimateForm(req),
	)
}

func estimateForm(req EstimateRequest) g.Node {
	return html.Form(
		html.Method("post"),
		html.Action("/predict"),

		selectField("make", "Marca del coche", Makes, req.Make),
		field("model", "Modelo del coche",
			html.Type("text"), html.Value(req.Model), html.Required()),
		numberField("year", "Año de fabricación", "1960", "2025", "1", strconv.Itoa(req.Year)),
		selectField("fuel", "Tipo de combustible", fuels, req.Fuel),
		selectField("shift", "Transmisión", shifts, req.Shift),
		numberField("power", "Potencia (CV)", "45", "500", "1", formatNumber(req.Power)),
		numberField("cylinders_capacity", "Cilindrada", "0", "6.8", "0.1", formatNumber(req.CylindersCapacity)),
		selectField("emission_label", "Etiqueta medioambiental", labels, req.EmissionLabel),
		numberField("kms", "Kilometraje", "0", "2000000", "1", formatNumber(req.Kms)),
		numberField("dealer_zip_code", "Código postal", "0", "60000", "1", strconv.Itoa(req.DealerZipCode)),

		html.Button(html.Type("submit"), g.Text("Predecir precio")),
	)
}

func field(name, label string, attrs ...g.Node) g.Node {
	return g.Group{
		html.Label(html.For(name), g.Text(label)),
		html.Input(html.ID(name), html.Name(name), g.Group(attrs)),
	}
}

func numberField(name, label, lo, hi, step, value string) g.Node {
	return field(name, label,
		html.Type("number"), html.Min(lo), html.Max(hi), html.Step(step), html.Value(value), html.Required(),
	)
}

func selectField(name, label string, options []string, selected string) g.Node {
	return g.Group{
		html.Label(html.For(name), g.Text(label)),
		html.Select(html.ID(name), html.Name(name),
			g.Map(options, func(o string) g.Node {
				return html.Option(html.Value(o), g.If(o == selected, html.Selected()), g.Text(o))
			}),
		),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
