package pipeline

const (
	ColumnTrackingNumber = "No. Resi"
	ColumnOrderStatus    = "Status Pesanan"
	ColumnTotalPayment   = "Total Pembayaran"
	ColumnOrderCreatedAt = "Waktu Pesanan Dibuat"
	ColumnPaidAt         = "Waktu Pembayaran Dilakukan"
)

const unknownText = "Tidak Diketahui"

// Config names the columns of the marketplace export the pipeline knows
// about. Fitted artifacts supply the rest.
type Config struct {
	IdentifierColumn    string
	LeakageColumns      []string
	DropColumns         []string
	PrimaryAmountColumn string
	CurrencyColumns     []string
	Rules               map[string]Rule
}

func DefaultConfig() Config {
	return Config{
		IdentifierColumn: ColumnTrackingNumber,
		LeakageColumns:   []string{ColumnOrderStatus},
		DropColumns: []string{
			"Source.Name", "Username (Pembeli)", "Nama Penerima", "No. Telepon", "Alamat Pengiriman",
			"No. Pesanan", "Status Pembatalan/ Pengembalian", ColumnTrackingNumber, "Catatan", "Catatan dari Pembeli",
			"Waktu Pesanan Selesai", "Antar ke counter/ pick-up", "Waktu Pengiriman Diatur",
			"Returned quantity",
		},
		PrimaryAmountColumn: ColumnTotalPayment,
		CurrencyColumns:     []string{ColumnTotalPayment},
		Rules: map[string]Rule{
			ColumnPaidAt:       {Fallback(ColumnOrderCreatedAt), ForwardFill()},
			"Alasan Pembatalan": {Constant(unknownText)},
			"Pesanan Harus Dikirimkan Sebelum (Menghindari keterlambatan)": {Constant(unknownText)},
			"Metode Pembayaran":   {Constant("Metode Pembayaran Lainnya")},
			"SKU Induk":           {Constant("0")},
			"Nomor Referensi SKU": {Constant("9999")},
			"Nama Variasi":        {Constant("Variasi Tidak Diketahui")},
			"Total Harga Produk":  {Constant("0")},
		},
	}
}

// DefaultCategoricalColumns is the encoded column set of the production
// model, used when a bundle does not list its own.
var DefaultCategoricalColumns = []string{
	"Alasan Pembatalan", "Opsi Pengiriman",
	"Pesanan Harus Dikirimkan Sebelum (Menghindari keterlambatan)", ColumnOrderCreatedAt,
	ColumnPaidAt, "Metode Pembayaran", "Nama Produk", "Nomor Referensi SKU",
	"Nama Variasi", "Berat Produk", "Total Berat", "Paket Diskon", "Kota/Kabupaten", "Provinsi",
}

type FeatureDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FeatureDescriptions lists the fields with the most influence on a
// cancellation, worded for the people reviewing predictions.
var FeatureDescriptions = []FeatureDescription{
	{Name: "Total Pembayaran", Description: "Total yang harus dibayar oleh pembeli."},
	{Name: "Ongkos Kirim yang Dibayar Pembeli", Description: "Biaya pengiriman yang ditanggung oleh pembeli."},
	{Name: "Metode Pembayaran", Description: "Metode pembayaran yang dipilih oleh pembeli."},
	{Name: "Voucher Ditanggung Penjual", Description: "Nilai voucher yang ditanggung oleh penjual."},
	{Name: "Estimasi Potongan Biaya Pengiriman", Description: "Estimasi biaya pengiriman."},
	{Name: "Opsi Pengiriman", Description: "Metode pengiriman yang dipilih oleh pembeli."},
	{Name: "Waktu Pembayaran Dilakukan", Description: "Waktu pembeli melakukan pembayaran."},
}
