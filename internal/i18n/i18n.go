package i18n

// Translator resolves a message key to a localized string. Unknown keys
// echo back the key itself so a missing catalog entry never blanks a label.
type Translator func(key string) string

var catalogs = map[string]map[string]string{
	"en": {
		"billing.title":                  "Billing",
		"billing.item.consultation_fee":  "Consultation Fee",
		"billing.item.type.consultation": "Consultation",
		"billing.item.type.drug":         "Drug",
		"billing.item.type.treatment":    "Treatment",
		"billing.item.type.examination":  "Examination",
		"billing.item.type.other":        "Other",
		"billing.error.empty":            "Please add at least one item to the bill",
		"billing.error.incomplete":       "Some items are incomplete, please check name, type, quantity and price",
		"billing.error.session_closed":   "This billing session has been closed",
		"billing.status.unpaid":          "Unpaid",
		"billing.status.paid":            "Paid",
	},
	"vi": {
		"billing.title":                  "Thanh toán",
		"billing.item.consultation_fee":  "Phí khám bệnh",
		"billing.item.type.consultation": "Khám bệnh",
		"billing.item.type.drug":         "Thuốc",
		"billing.item.type.treatment":    "Điều trị",
		"billing.item.type.examination":  "Xét nghiệm",
		"billing.item.type.other":        "Khác",
		"billing.error.empty":            "Vui lòng thêm ít nhất một mục vào hóa đơn",
		"billing.error.incomplete":       "Một số mục chưa đầy đủ, vui lòng kiểm tra tên, loại, số lượng và đơn giá",
		"billing.error.session_closed":   "Phiên thanh toán này đã đóng",
		"billing.status.unpaid":          "Chưa thanh toán",
		"billing.status.paid":            "Đã thanh toán",
	},
}

// New returns a Translator for the given locale. Unknown locales fall back
// to English; unknown keys fall back to the key.
func New(locale string) Translator {
	catalog, ok := catalogs[locale]
	if !ok {
		catalog = catalogs["en"]
	}
	return func(key string) string {
		if msg, ok := catalog[key]; ok {
			return msg
		}
		return key
	}
}
