package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/tg"
)

// GetStickersFromPack загружает документы стикерпака по ссылке
// вида https://t.me/addstickers/name.
func GetStickersFromPack(ctx context.Context, api *tg.Client, packURL string) ([]*tg.Document, error) {
	if !strings.Contains(packURL, "/addstickers/") {
		return nil, fmt.Errorf("некорректная ссылка на стикерпак: %q", packURL)
	}
	shortName := packURL[strings.LastIndex(packURL, "/addstickers/")+len("/addstickers/"):]

	res, err := api.MessagesGetStickerSet(ctx, &tg.MessagesGetStickerSetRequest{
		Stickerset: &tg.InputStickerSetShortName{ShortName: shortName},
		Hash:       0,
	})
	if err != nil {
		return nil, err
	}
	set, ok := res.(*tg.MessagesStickerSet)
	if !ok {
		return nil, fmt.Errorf("unexpected sticker set type %T", res)
	}

	var docs []*tg.Document
	for _, raw := range set.Documents {
		if doc, ok := raw.(*tg.Document); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
