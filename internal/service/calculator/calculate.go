package ridecalc

import (
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
)

type Calculator interface {
	Distance(from, to models.Cell) int
	Fare(distance int) float64
	Duration(distance int) time.Duration
	Quote(from, to models.Cell) models.Quote
	ETA(driverPos, pickup models.Cell) time.Duration
}

// CalculatorImpl считает по манхэттенской метрике: в сетке машина ходит
// только по осям, диагональ стоит два шага.
type CalculatorImpl struct {
	baseFare     int64
	pricePerCell int64
	minFare      int64
	timePerCell  time.Duration
}

func New(cfg config.FareConfig) *CalculatorImpl {
	return &CalculatorImpl{
		baseFare:     cfg.BaseFare,
		pricePerCell: cfg.PricePerCell,
		minFare:      cfg.MinFare,
		timePerCell:  cfg.TimePerCell,
	}
}

// Distance - длина маршрута в клетках.
func (c *CalculatorImpl) Distance(from, to models.Cell) int {
	return models.Manhattan(from, to)
}

// Fare - цена поездки. Короткие поездки подтягиваются к минимальному тарифу.
func (c *CalculatorImpl) Fare(distance int) float64 {
	price := c.baseFare + int64(distance)*c.pricePerCell
	if price < c.minFare {
		price = c.minFare
	}
	return float64(price)
}

// Duration - примерное время поездки.
func (c *CalculatorImpl) Duration(distance int) time.Duration {
	return time.Duration(distance) * c.timePerCell
}

// Quote собирает расчётные поля для создания поездки и ответов API.
func (c *CalculatorImpl) Quote(from, to models.Cell) models.Quote {
	d := c.Distance(from, to)
	return models.Quote{
		Distance: d,
		Price:    c.Fare(d),
		Duration: c.Duration(d),
	}
}

// ETA - время подачи машины от её текущей клетки до точки посадки.
func (c *CalculatorImpl) ETA(driverPos, pickup models.Cell) time.Duration {
	return c.Duration(c.Distance(driverPos, pickup))
}
