package core

import (
	"os"

	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/protocol"
	"go.uber.org/zap"
)

// promptActions open a dialog. They take the lock only around reading and
// applying state, never while the dialog runs.
var promptActions = map[string]func(*Model){
	keys.SelectEmoji:   (*Model).selectEmoji,
	keys.SelectContact: (*Model).selectContact,
	keys.GotoChat:      (*Model).gotoChat,
	keys.ForwardMsg:    (*Model).forwardMessage,
	keys.Transfer:      (*Model).transferFile,
	keys.DeleteMsg:     (*Model).deleteMessage,
	keys.DeleteChat:    (*Model).deleteChat,
	keys.React:         (*Model).react,
	keys.Find:          (*Model).find,
}

// selection returns the focused chat and its selected message.
func (m *Model) selection() (ChatKey, protocol.ChatMessage, bool) {
	var (
		key ChatKey
		msg protocol.ChatMessage
		ok  bool
	)
	m.WithLock(func(l *Locked) {
		c := l.st().currentChat()
		if c == nil {
			return
		}
		key = c.key
		msg, ok = c.msgs[c.selected]
		if !ok {
			l.flash(FlashWarn, "no message selected")
		}
	})
	return key, msg, ok
}

func (m *Model) currentKey() (ChatKey, bool) {
	l := m.Lock()
	defer l.Unlock()
	return l.CurrentChat()
}

func (m *Model) flashf(level FlashLevel, text string) {
	m.WithLock(func(l *Locked) { l.flash(level, text) })
}

func (m *Model) havePrompter() bool {
	if m.prompter == nil {
		m.logger.Warn("dialog requested without a prompter")
		return false
	}
	return true
}

func (m *Model) selectEmoji() {
	if !m.havePrompter() {
		return
	}
	if _, ok := m.currentKey(); !ok {
		return
	}
	emoji, ok := m.prompter.SelectEmoji()
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) { l.InsertText(emoji) })
}

func (m *Model) selectContact() {
	if !m.havePrompter() {
		return
	}
	profileID := ""
	if key, ok := m.currentKey(); ok {
		profileID = key.ProfileID
	} else if ids := m.profileIDs(); len(ids) > 0 {
		profileID = ids[0]
	}
	if profileID == "" {
		return
	}
	contactID, ok := m.prompter.SelectContact("Select contact", profileID)
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) {
		l.SelectChat(ChatKey{ProfileID: profileID, ChatID: contactID})
	})
}

func (m *Model) gotoChat() {
	if !m.havePrompter() {
		return
	}
	key, ok := m.prompter.SelectChat("Go to chat")
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) {
		if l.st().chat(key) != nil {
			l.SelectChat(key)
		}
	})
}

func (m *Model) forwardMessage() {
	if !m.havePrompter() {
		return
	}
	_, msg, ok := m.selection()
	if !ok {
		return
	}
	target, ok := m.prompter.SelectChat("Forward to")
	if !ok {
		return
	}
	req := protocol.SendMessage{ChatID: target.ChatID, Text: msg.Text}
	if msg.File != nil && msg.File.Status == protocol.FileDownloaded {
		req.FilePath = msg.File.Path
	}
	if req.Text == "" && req.FilePath == "" {
		m.flashf(FlashWarn, "nothing to forward")
		return
	}
	m.WithLock(func(l *Locked) {
		l.request(target.ProfileID, req)
		l.flash(FlashInfo, "forwarded to "+l.ChatName(target))
	})
}

func (m *Model) transferFile() {
	if !m.havePrompter() {
		return
	}
	key, ok := m.currentKey()
	if !ok {
		return
	}
	if reg, _ := m.lookup(key.ProfileID); !reg.features.SendFile {
		m.flashf(FlashWarn, "file transfer not supported")
		return
	}
	dir := m.cfg.UI.DownloadDir
	if dir == "" {
		dir, _ = os.UserHomeDir()
	}
	path, ok := m.prompter.SelectFile(dir)
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) {
		l.request(key.ProfileID, protocol.SendMessage{ChatID: key.ChatID, FilePath: path})
		l.flash(FlashInfo, "sending "+path)
	})
}

func (m *Model) deleteMessage() {
	key, msg, ok := m.selection()
	if !ok {
		return
	}
	if reg, _ := m.lookup(key.ProfileID); !reg.features.DeleteMessage {
		m.flashf(FlashWarn, "deleting messages not supported")
		return
	}
	if m.cfg.UI.ConfirmDeletion && (!m.havePrompter() || !m.prompter.Confirm("Delete selected message?")) {
		return
	}
	m.WithLock(func(l *Locked) {
		c := l.st().chat(key)
		if c == nil || !c.remove(msg.ID) {
			return
		}
		l.request(key.ProfileID, protocol.DeleteMessage{ChatID: key.ChatID, MessageID: msg.ID})
		if store := m.store; store != nil {
			l.ops = append(l.ops, func() {
				if err := store.DeleteMessage(key.ProfileID, key.ChatID, msg.ID); err != nil {
					m.logger.Warn("cache delete failed", zap.Error(err), zap.String("msg_id", msg.ID))
				}
			})
		}
		l.dirty |= RegionHistory | RegionList
	})
}

func (m *Model) deleteChat() {
	key, ok := m.currentKey()
	if !ok {
		return
	}
	if reg, _ := m.lookup(key.ProfileID); !reg.features.DeleteChat {
		m.flashf(FlashWarn, "deleting chats not supported")
		return
	}
	if m.cfg.UI.ConfirmDeletion && (!m.havePrompter() || !m.prompter.Confirm("Delete current chat?")) {
		return
	}
	m.WithLock(func(l *Locked) {
		l.removeChat(key)
		l.request(key.ProfileID, protocol.DeleteChat{ChatID: key.ChatID})
		if store := m.store; store != nil {
			l.ops = append(l.ops, func() {
				if err := store.DeleteChat(key.ProfileID, key.ChatID); err != nil {
					m.logger.Warn("cache delete failed", zap.Error(err), zap.String("chat", key.ChatID))
				}
			})
		}
	})
}

func (m *Model) react() {
	if !m.havePrompter() {
		return
	}
	key, msg, ok := m.selection()
	if !ok {
		return
	}
	if reg, _ := m.lookup(key.ProfileID); !reg.features.Reactions {
		m.flashf(FlashWarn, "reactions not supported")
		return
	}
	emoji, ok := m.prompter.SelectEmoji()
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) {
		c := l.st().chat(key)
		if c == nil {
			return
		}
		cur, ok := c.msgs[msg.ID]
		if !ok {
			return
		}
		if emoji == cur.Reactions.Own {
			emoji = ""
		}
		cur.Reactions = cur.Reactions.With(cur.Reactions.Own, emoji, true)
		c.msgs[cur.ID] = cur
		c.version++
		l.request(key.ProfileID, protocol.SendReaction{
			ChatID: key.ChatID, MessageID: cur.ID, SenderID: cur.SenderID, Emoji: emoji,
		})
		l.dirty |= RegionHistory
	})
}

func (m *Model) find() {
	if !m.havePrompter() {
		return
	}
	var initial string
	m.WithLock(func(l *Locked) { initial = l.st().findQuery })
	query, ok := m.prompter.Input("Find", initial)
	if !ok {
		return
	}
	m.WithLock(func(l *Locked) {
		l.st().findQuery = query
		if c := l.st().currentChat(); c != nil {
			c.selected = ""
		}
		l.findNext()
	})
}
