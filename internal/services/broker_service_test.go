package services

import (
	"testing"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerService_SingleHouse(t *testing.T) {
	f := newFixture(t)
	house := f.house()

	_, err := f.brokers.Create(f.ctx, master, BrokerInput{Name: "Agencia", PercentDefault: models.MustFraction("1"), IsHouse: true})
	assertKind(t, err, KindStateConflict)

	ana := f.broker("Ana", "0.80")
	_, err = f.brokers.Update(f.ctx, master, ana.ID, BrokerInput{Name: "Ana", PercentDefault: models.MustFraction("0.80"), IsHouse: true})
	assertKind(t, err, KindStateConflict)

	// the house broker can still be edited
	updated, err := f.brokers.Update(f.ctx, master, house.ID, BrokerInput{Name: "Oficina Central", PercentDefault: models.MustFraction("1"), IsHouse: true})
	require.NoError(t, err)
	assert.Equal(t, "Oficina Central", updated.Name)
}

func TestBrokerService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.brokers.Create(f.ctx, master, BrokerInput{Name: "", PercentDefault: models.MustFraction("0.5")})
	assertKind(t, err, KindValidation)

	_, err = f.brokers.Create(f.ctx, master, BrokerInput{Name: "Ana", Email: "no-es-correo", PercentDefault: models.MustFraction("0.5")})
	assertKind(t, err, KindValidation)

	ana := f.broker("Ana", "0.80")
	_, err = f.brokers.Create(f.ctx, brokerActor(ana), BrokerInput{Name: "Beto", PercentDefault: models.MustFraction("0.5")})
	assertKind(t, err, KindForbidden)

	_, err = f.brokers.Get(f.ctx, 999)
	assertKind(t, err, KindNotFound)
}

func TestBrokerService_Insurers(t *testing.T) {
	f := newFixture(t)
	f.insurer("Seguros Atlántida")

	_, err := f.brokers.CreateInsurer(f.ctx, master, " Seguros Atlántida ")
	assertKind(t, err, KindStateConflict)

	_, err = f.brokers.CreateInsurer(f.ctx, master, "  ")
	assertKind(t, err, KindValidation)

	insurers, err := f.brokers.ListInsurers(f.ctx)
	require.NoError(t, err)
	assert.Len(t, insurers, 1)
}
