package bot

// Static texts shown by the /info and /prices commands.

const infoText = `📚 Обучение математике

Индивидуальные занятия для школьников 5–11 классов:
• подготовка к ОГЭ и ЕГЭ (профиль и база);
• помощь с текущей школьной программой;
• олимпиадная математика.

Занятия проходят онлайн, длительность — 55 минут.
Перед первым занятием проводится бесплатная диагностика уровня.

Записаться можно через команду /book, свободные даты — /slots.`

const pricesText = `💰 Стоимость занятий

• Разовое занятие (55 мин) — 2000 ₽
• Абонемент на 4 занятия — 7200 ₽
• Абонемент на 8 занятий — 13600 ₽

Оплата после занятия. Перенос возможен не позднее чем за сутки,
отменить запись можно в разделе «Мои записи» (/mybookings).

Остались вопросы — задайте их через /ask.`
