package models

// Account описывает один аккаунт Telegram из accounts.csv.
// Прокси и учётные данные после загрузки не меняются; строка сессии —
// единственное поле, которое переписывается обратно в файл.
type Account struct {
	Phone    string `json:"phone"`
	ApiID    int    `json:"api_id"`
	ApiHash  string `json:"api_hash"`
	Password string `json:"password"`
	Session  string `json:"session"`
	Proxy    *Proxy `json:"proxy"`
}
