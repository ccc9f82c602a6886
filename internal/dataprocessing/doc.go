// Package dataprocessing turns uploaded transaction tables into the daily
// series the forecaster consumes.
//
// # Components
//
//  1. Readers: CSVReader and ExcelReader produce a Table (header + cells)
//  2. Loader: resolves field names once, validates required fields, parses
//     dates and money, derives total_price and fills absent optional fields
//  3. Aggregator: groups rows by calendar day and sums total_price
//  4. SumByField: channel and region breakdowns for the dashboard
//
// # Field Names
//
// Headers are normalized by trimming, lowercasing and joining internal
// whitespace with underscores. Logical fields are then matched with
// underscores ignored, so "Unit Price", "unitprice" and " UNIT_PRICE " all
// resolve to unit_price.
//
// # Data Flow
//
//	File → TabularReader → Table → Loader → []SalesRow → Aggregator → DailySeries
//
// # Error Handling
//
// Missing required fields return *MissingFieldError, bad numeric cells
// *ValueError, and short histories *InsufficientDataError. Rows with an
// unparseable date are dropped and reported in LoadResult.DroppedRows.
package dataprocessing
