package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func costRow(id, label string, cost, qty float64) Row {
	return Row{ID: id, BeforeAfter: label, Cost: cost, Quantity: qty}
}

func TestAggregateMeasures(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		m := AggregateMeasures([]Row{
			costRow("A", "", 10, 1),
			costRow("A", "", 20, 2),
			costRow("B", "", 30, 3),
		})
		assert.Equal(t, 60.0, m.Cost)
		assert.Equal(t, 6.0, m.Quantity)
		assert.Equal(t, 2, m.Users)
		require.NotNil(t, m.CostPerUnit)
		assert.Equal(t, 10.0, *m.CostPerUnit)
		require.NotNil(t, m.UsagePerUser)
		assert.Equal(t, 3.0, *m.UsagePerUser)
		require.NotNil(t, m.CostPerUser)
		assert.Equal(t, 30.0, *m.CostPerUser)
	})

	t.Run("empty", func(t *testing.T) {
		m := AggregateMeasures(nil)
		assert.Zero(t, m.Cost)
		assert.Zero(t, m.Users)
		assert.Nil(t, m.CostPerUnit)
		assert.Nil(t, m.UsagePerUser)
		assert.Nil(t, m.CostPerUser)
	})
}

func TestBeforeAfterPivot(t *testing.T) {
	rows := []Row{
		costRow("A", LabelBefore, 100, 1),
		costRow("B", LabelBefore, 50, 1),
		costRow("A", LabelAfter, 60, 1),
		costRow("A", LabelZeroMonth, 999, 1),
	}

	got := BeforeAfterPivot(rows, 4)
	require.Len(t, got, 4)

	before, after, diff, pct := got[0], got[1], got[2], got[3]
	assert.Equal(t, LabelBefore, before.Period)
	assert.Equal(t, 150.0, before.Cost)
	assert.Equal(t, 2.0, before.ActiveUsers)
	assert.Equal(t, 75.0, before.CostPerActiveUser)
	assert.Equal(t, 4.0, before.BaseUsers)
	assert.Equal(t, 37.5, before.CostPerBaseUser)

	assert.Equal(t, LabelAfter, after.Period)
	assert.Equal(t, 60.0, after.Cost)
	assert.Equal(t, 1.0, after.ActiveUsers)
	assert.Equal(t, 15.0, after.CostPerBaseUser)

	assert.Equal(t, LabelDifference, diff.Period)
	assert.Equal(t, after.Cost-before.Cost, diff.Cost)
	assert.Equal(t, after.ActiveUsers-before.ActiveUsers, diff.ActiveUsers)
	assert.Equal(t, after.CostPerActiveUser-before.CostPerActiveUser, diff.CostPerActiveUser)
	assert.Equal(t, after.CostPerBaseUser-before.CostPerBaseUser, diff.CostPerBaseUser)
	assert.Zero(t, diff.BaseUsers)

	assert.Equal(t, LabelPercent, pct.Period)
	assert.InDelta(t, -60.0, pct.Cost, 1e-9)
	assert.InDelta(t, -50.0, pct.ActiveUsers, 1e-9)
	assert.InDelta(t, -20.0, pct.CostPerActiveUser, 1e-9)
	assert.InDelta(t, -60.0, pct.CostPerBaseUser, 1e-9)
	assert.Zero(t, pct.BaseUsers)
}

func TestBeforeAfterPivotZeroBefore(t *testing.T) {
	got := BeforeAfterPivot([]Row{costRow("A", LabelAfter, 80, 1)}, 2)
	require.Len(t, got, 4)
	assert.Zero(t, got[0].Cost)
	assert.Equal(t, 80.0, got[2].Cost)

	pct := got[3]
	assert.Zero(t, pct.Cost)
	assert.Zero(t, pct.ActiveUsers)
	assert.Zero(t, pct.CostPerActiveUser)
	assert.Zero(t, pct.CostPerBaseUser)
}

func TestBeforeAfterPivotWithoutBase(t *testing.T) {
	got := BeforeAfterPivot([]Row{
		costRow("A", LabelBefore, 30, 1),
		costRow("B", LabelBefore, 30, 1),
	}, 0)
	assert.Equal(t, 2.0, got[0].BaseUsers)
	assert.Equal(t, 30.0, got[0].CostPerBaseUser)
	assert.Zero(t, got[1].BaseUsers)
	assert.Zero(t, got[1].CostPerBaseUser)
}

func TestCostDrivers(t *testing.T) {
	rows := []Row{
		{ID: "A", Group: "G1", ServiceDescription: "Consulta", Cost: 100, Quantity: 1},
		{ID: "B", Group: "G2", ServiceDescription: "Internação", Cost: 300, Quantity: 2},
		{ID: "A", Group: "", ServiceDescription: "Consulta", Cost: 50, Quantity: 3},
	}
	got := CostDrivers(rows)

	require.Len(t, got.Groups, 2)
	assert.Equal(t, GroupDriver{Group: "G2", Cost: 300, Share: 0.75}, got.Groups[0])
	assert.Equal(t, GroupDriver{Group: "G1", Cost: 100, Share: 0.25}, got.Groups[1])

	require.Len(t, got.Procedures, 2)
	assert.Equal(t, ProcedureDriver{Description: "Internação", Cost: 300, Quantity: 2}, got.Procedures[0])
	assert.Equal(t, ProcedureDriver{Description: "Consulta", Cost: 150, Quantity: 4}, got.Procedures[1])

	require.Len(t, got.Beneficiaries, 2)
	assert.Equal(t, "B", got.Beneficiaries[0].ID)
	assert.InDelta(t, 300.0/450.0, got.Beneficiaries[0].Share, 1e-12)
}

func TestCostDriversTopBeneficiariesShareOfSubset(t *testing.T) {
	var rows []Row
	for i := 1; i <= 25; i++ {
		rows = append(rows, Row{ID: string(rune('a' + i)), Cost: float64(i)})
	}
	got := CostDrivers(rows)
	require.Len(t, got.Beneficiaries, TopBeneficiaries)

	var total float64
	for _, b := range got.Beneficiaries {
		total += b.Share
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, 25.0, got.Beneficiaries[0].Cost)
	assert.Empty(t, got.Groups)
	assert.Empty(t, got.Procedures)
}
