package constants

const (
	TABLE_ORDERS       = "orders"
	TABLE_CALL_RECORDS = "call_records"
)
