package conversation

// Dialog strings, keyed by language. The approver side of the system speaks
// one language; only the customer dialog is localized.
var texts = map[string]map[string]string{
	"ru": {
		"choose_date":     "Выберите дату:",
		"choose_time":     "Выберите время:",
		"ask_name":        "Как вас зовут?",
		"name_short":      "Имя слишком короткое. Как вас зовут?",
		"ask_phone":       "Ваш номер телефона?",
		"phone_bad":       "Номер не похож на телефон. Ваш номер телефона?",
		"choose_services": "Выберите услуги (можно несколько), затем «Готово»:",
		"need_service":    "Выберите хотя бы одну услугу.",
		"confirm":         "Подтвердить запись?",
		"yes":             "Подтвердить",
		"no":              "Отмена",
		"done":            "Готово",
		"submitted":       "Заявка отправлена! Мастер подтвердит её в ближайшее время.",
		"slot_taken":      "Это время уже занято. Выберите другое:",
		"already_booked":  "У вас уже есть активная запись. Сначала отмените её.",
		"cancelled":       "Диалог отменён.",
	},
	"uz": {
		"choose_date":     "Sanani tanlang:",
		"choose_time":     "Vaqtni tanlang:",
		"ask_name":        "Ismingiz nima?",
		"name_short":      "Ism juda qisqa. Ismingiz nima?",
		"ask_phone":       "Telefon raqamingiz?",
		"phone_bad":       "Raqam telefon raqamiga o'xshamaydi. Telefon raqamingiz?",
		"choose_services": "Xizmatlarni tanlang (bir nechtasi mumkin), so'ng «Tayyor»:",
		"need_service":    "Kamida bitta xizmat tanlang.",
		"confirm":         "Yozuvni tasdiqlaysizmi?",
		"yes":             "Tasdiqlash",
		"no":              "Bekor qilish",
		"done":            "Tayyor",
		"submitted":       "So'rov yuborildi! Usta tez orada tasdiqlaydi.",
		"slot_taken":      "Bu vaqt band. Boshqasini tanlang:",
		"already_booked":  "Sizda allaqachon faol yozuv bor. Avval uni bekor qiling.",
		"cancelled":       "Suhbat bekor qilindi.",
	},
}

func tr(lang, key string) string {
	if m, ok := texts[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return texts["ru"][key]
}
