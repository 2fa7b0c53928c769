// Package mapper groups property records into map cells.
package mapper

import (
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	h3mapper "github.com/mohammed-shakir/estate-search/internal/mapper/h3"
)

type Interface interface {
	Cluster(records []model.Record, res int) ([]h3mapper.Cluster, error)
}

var _ Interface = (*h3mapper.Mapper)(nil)
