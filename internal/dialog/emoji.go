package dialog

type emoji struct {
	glyph string
	name  string
}

var emojiTable = []emoji{
	{"👍", "thumbs up"},
	{"❤️", "red heart"},
	{"😂", "tears of joy"},
	{"😮", "open mouth"},
	{"😢", "crying"},
	{"🙏", "folded hands"},
	{"👎", "thumbs down"},
	{"🔥", "fire"},
	{"🎉", "party popper"},
	{"👏", "clapping hands"},
	{"😊", "smiling eyes"},
	{"😍", "heart eyes"},
	{"🤔", "thinking"},
	{"😅", "sweat smile"},
	{"🙌", "raising hands"},
	{"💯", "hundred points"},
	{"✅", "check mark"},
	{"👀", "eyes"},
	{"🤝", "handshake"},
	{"😡", "angry"},
	{"🥳", "partying face"},
	{"😎", "sunglasses"},
	{"🤣", "rolling on the floor laughing"},
	{"💪", "flexed biceps"},
	{"👋", "waving hand"},
	{"😴", "sleeping"},
	{"🤷", "shrug"},
	{"😬", "grimacing"},
	{"🙈", "see no evil"},
	{"☕", "hot beverage"},
}
