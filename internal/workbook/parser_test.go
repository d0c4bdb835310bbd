package workbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTWB = `<?xml version='1.0' encoding='utf-8' ?>
<workbook version='18.1' xmlns:user='http://www.tableausoftware.com/xml/user'>
  <document-format-change-manifest/>
  <repository-location/>
  <datasources>
    <datasource name='Parameters' caption='Parameters' inline='true'>
      <column name='[Top N]' caption='Top N' datatype='integer' role='measure' type='quantitative'/>
    </datasource>
    <datasource name='federated.0abc1' caption='Superstore' inline='true'>
      <connection class='federated'>
        <named-connections>
          <named-connection name='excel-direct.1'>
            <connection class='excel-direct' filename='Data/Superstore.xlsx'/>
          </named-connection>
        </named-connections>
      </connection>
      <column name='[Sales]' caption='Sales' datatype='real' role='measure' type='quantitative'/>
      <column name='[Region]' caption='Region' datatype='string' role='dimension' type='nominal'/>
      <column name='[Profit Ratio]' caption='Profit Ratio' datatype='real' role='measure' type='quantitative' aggregation='Sum'>
        <calculation class='tableau' formula='SUM([Profit]) / SUM([Sales])'/>
      </column>
      <column name='[Sales per Region]' caption='Sales per Region' datatype='real' role='measure' type='quantitative'>
        <calculation class='tableau' formula='{ FIXED [Region] : SUM([Sales]) }'/>
      </column>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Sales by Region'>
      <table>
        <view>
          <datasource-dependencies datasource='federated.0abc1'>
            <column name='[Sales]' datatype='real' role='measure' type='quantitative'/>
            <column name='[Region]' datatype='string' role='dimension' type='nominal'/>
          </datasource-dependencies>
          <filter class='categorical' column='[federated.0abc1].[Region]'/>
        </view>
        <panes>
          <pane>
            <mark class='Bar'/>
            <encodings>
              <encoding attr='color' field='[federated.0abc1].[Region]'/>
            </encodings>
          </pane>
        </panes>
      </table>
    </worksheet>
  </worksheets>
  <dashboards>
    <dashboard name='Overview'>
      <size width='1000' height='700'/>
      <zones>
        <zone type='layout-basic' name='' x='0' y='0' w='100000' h='100000'>
          <zone type='worksheet' name='Sales by Region' x='0' y='0' w='50000' h='100000'/>
        </zone>
      </zones>
    </dashboard>
  </dashboards>
</workbook>`

func TestParseCalculations(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)

	require.Len(t, s.Calculations, 2)

	ratio, ok := s.Calculations["Profit Ratio"]
	require.True(t, ok)
	assert.Equal(t, "SUM([Profit]) / SUM([Sales])", ratio.Formula)
	assert.Equal(t, "measure", ratio.Role)
	assert.Equal(t, "real", ratio.DataType)
	assert.Equal(t, "Sum", ratio.Aggregation)
	assert.ElementsMatch(t, []string{"Profit", "Sales"}, ratio.Dependencies)
	assert.False(t, ratio.IsLOD)

	lod, ok := s.Calculations["Sales per Region"]
	require.True(t, ok)
	assert.True(t, lod.IsLOD)
	assert.Equal(t, "FIXED", lod.LODType)
	assert.ElementsMatch(t, []string{"Region", "Sales"}, lod.Dependencies)
}

func TestParseDatasources(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)

	// The Parameters pseudo-datasource becomes parameters, not a source.
	require.Len(t, s.Datasources, 1)
	ds := s.Datasources[0]
	assert.Equal(t, "federated.0abc1", ds.Name)
	assert.Equal(t, "Superstore", ds.Caption)
	assert.True(t, ds.Inline)

	// Nested named connections are flattened.
	require.Len(t, ds.Connections, 2)
	assert.Equal(t, "federated", ds.Connections[0].Class)
	assert.Equal(t, "excel-direct", ds.Connections[1].Class)
	assert.Equal(t, "Data/Superstore.xlsx", ds.Connections[1].Filename)

	require.Len(t, s.Parameters, 1)
	assert.Equal(t, "[Top N]", s.Parameters[0].Name)
	assert.Equal(t, "Top N", s.Parameters[0].Caption)
}

func TestParseWorksheets(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)

	ws, ok := s.Worksheets["Sales by Region"]
	require.True(t, ok)
	assert.Equal(t, []string{"federated.0abc1"}, ws.Datasources)
	require.Len(t, ws.Marks, 1)
	assert.Equal(t, "Bar", ws.Marks[0].Class)
	assert.Equal(t, "[federated.0abc1].[Region]", ws.Marks[0].Encodings["color"])
	require.Len(t, ws.Filters, 1)
	assert.Equal(t, "categorical", ws.Filters[0].Class)
	assert.Contains(t, ws.Fields, "[Sales]")
	assert.Contains(t, ws.Fields, "[Region]")
}

func TestParseDashboards(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)

	dash, ok := s.Dashboards["Overview"]
	require.True(t, ok)
	assert.Equal(t, 1000, dash.Width)
	assert.Equal(t, 700, dash.Height)
	assert.Equal(t, []string{"Sales by Region"}, dash.Worksheets)
	assert.Len(t, dash.Zones, 2)
}

func TestParseMetadata(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)
	assert.Equal(t, "18.1", s.Version)
}

func TestParseRejectsNonWorkbookXML(t *testing.T) {
	_, err := Parse(strings.NewReader("<other/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workbook element")
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader("<workbook><unclosed>"))
	require.Error(t, err)
}

func TestCalculationFormulas(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleTWB))
	require.NoError(t, err)

	formulas := s.CalculationFormulas()
	assert.Equal(t, "SUM([Profit]) / SUM([Sales])", formulas["Profit Ratio"])
	assert.Len(t, formulas, 2)
}
