package extract

// Field names one value read from the position detail page.
type Field string

const (
	FieldTitle         Field = "title"
	FieldInfo          Field = "info"
	FieldLiquidity     Field = "liquidity"
	FieldUnclaimedFees Field = "unclaimed_fees"
	FieldAPR           Field = "apr"
	FieldMinPrice      Field = "min_price"
	FieldMaxPrice      Field = "max_price"
	FieldCurrentPrice  Field = "current_price"
)

// FieldPath locates one field by its structural path in the desktop layout.
type FieldPath struct {
	Field   Field
	Path    string
	Numeric bool
}

// Layout is the ordered set of fields read from one page layout. A change
// to the external page is absorbed by editing the matching entry here.
type Layout []FieldPath

// Structural paths of the position card in the 1920px desktop layout of
// the liquidity detail page. Class names are build hashes and change with
// front-end releases.
const (
	positionCard       = "#__next > div.sc-988a99b1-0.eofyWz._1a5xov70._1qhetbf15i._1qhetbf16q > div.sc-3fcdcbc5-1.sc-988a99b1-4.jvEjwn.lnsiAZ > div > div > div.sc-3fcdcbc5-1.jrystL > div > div"
	positionCardHeader = positionCard + " > div.sc-3fcdcbc5-1.sc-9cde33ed-0.sc-f27bab7e-0.gbBSci.hJpHKU.eflpCB > div > div > div > div.sc-3fcdcbc5-1.sc-9cde33ed-0.gbBSci.kdVScb > div"
	positionCardBody   = positionCard + " > div.sc-924b0d3b-0.fkmAJX > div._1a5xov70._1qhetbf6._1qhetbf1q0._1qhetbf2o._1qhetbf7i._1qhetbft6._1qhetbf46 > div"
	positionCardRange  = positionCard + " > div.sc-924b0d3b-0.fkmAJX > div.sc-3fcdcbc5-1.sc-9cde33ed-0.gbBSci.fAzhcp > div.sc-3fcdcbc5-1.doPGMl"
	rangeBounds        = positionCardRange + " > div._1a5xov70._1qhetbfg0._1qhetbf6._1qhetbf1q0._1qhetbf2o._1qhetbf7i._1qhetbft6._1qhetbf46 > div"
)

// PancakeLayout is the v3 liquidity position page on pancakeswap.finance.
var PancakeLayout = Layout{
	{Field: FieldTitle, Path: positionCardHeader + " > div.sc-3fcdcbc5-1.sc-9cde33ed-0.gbBSci.bhTcKs > h2"},
	{Field: FieldInfo, Path: positionCardHeader + " > div._1a5xov70._1qhetbf6._1qhetbf1q0._1qhetbf2o._1qhetbf8i._1qhetbft6._1qhetbf4c._1qhetbf22u > div"},
	{Field: FieldLiquidity, Path: positionCardBody + " > div.sc-3fcdcbc5-1.crdkdg > div.sc-1e14ff52-0.fusaTy"},
	{Field: FieldUnclaimedFees, Path: positionCardBody + " > div.sc-3fcdcbc5-1.doPGMl > div._1a5xov70._1qhetbfg0._1qhetbf6._1qhetbf1q0._1qhetbf2o._1qhetbf8i._1qhetbft6._1qhetbf46 > div"},
	{Field: FieldAPR, Path: positionCardBody + " > div.sc-3fcdcbc5-1.crdkdg > div.sc-3fcdcbc5-1.sc-9cde33ed-0.cEoyjA.hJpHKU > div > div:nth-child(2) > div > div > span > div"},
	{Field: FieldMinPrice, Numeric: true, Path: rangeBounds + " > div.sc-3fcdcbc5-1.sc-2340fd50-0.sc-2340fd50-2.lpuOsy.dkMNzI.eEPkok > h2"},
	{Field: FieldMaxPrice, Numeric: true, Path: rangeBounds + " > div.sc-3fcdcbc5-1.sc-2340fd50-0.sc-2340fd50-2.hKMEfs.dkMNzI.eEPkok > h2"},
	{Field: FieldCurrentPrice, Numeric: true, Path: positionCardRange + " > div.sc-3fcdcbc5-1.sc-2340fd50-0.sc-2340fd50-2.gbBSci.dkMNzI.eEPkok > h2"},
}
